package token

// AuthPayload is stored under the auth namespace. SessionToken is a back-reference to the
// session currently opened with this auth token, not an ownership link.
type AuthPayload struct {
	UserID       string `json:"user_id"`
	SessionToken string `json:"session_token"`
}

// SessionPayload aggregates the project tokens opened during a session. AuthToken records the
// auth token the session was established with.
type SessionPayload struct {
	UserID        string   `json:"user_id"`
	AuthToken     string   `json:"auth_token"`
	ProjectTokens []string `json:"project_tokens"`
}

// HasProject reports whether the project token is linked to the session.
func (s *SessionPayload) HasProject(projectToken string) bool {
	for _, t := range s.ProjectTokens {
		if t == projectToken {
			return true
		}
	}
	return false
}

// ProjectPayload describes an editor project context. SessionToken records the session the
// project was opened in, so projects outliving their session can be found. Data is opaque to the
// token core.
type ProjectPayload struct {
	ProjectID    string         `json:"project_id"`
	SessionToken string         `json:"session_token"`
	Data         map[string]any `json:"data"`
}

// VerificationPayload is stored under the email verification namespace.
type VerificationPayload struct {
	UserID string `json:"user_id"`
}

// canonical fills empty collections so every write emits the full payload shape.
func canonical(payload any) any {
	switch p := payload.(type) {
	case *SessionPayload:
		if p.ProjectTokens == nil {
			c := *p
			c.ProjectTokens = []string{}
			return &c
		}
	case SessionPayload:
		if p.ProjectTokens == nil {
			p.ProjectTokens = []string{}
		}
		return p
	case *ProjectPayload:
		if p.Data == nil {
			c := *p
			c.Data = map[string]any{}
			return &c
		}
	case ProjectPayload:
		if p.Data == nil {
			p.Data = map[string]any{}
		}
		return p
	}
	return payload
}
