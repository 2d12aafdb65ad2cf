package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	sessionkit "github.com/portalkit/sessionkit"
)

// flexString accepts a JSON string or number. Legacy payloads serialized
// numeric IDs bare.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexTime accepts RFC 3339 strings and epoch seconds, the two timestamp
// spellings the backend has used. Unparseable values load as zero.
type flexTime struct {
	t time.Time
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		f.t = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			f.t = parsed
		}
		return nil
	}
	if epoch, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		f.t = time.Unix(epoch, 0).UTC()
	}
	return nil
}

/*
====================================
GRANT SCHEMAS
====================================
*/

type wireGrant struct {
	AccessToken  string
	RefreshToken string
	User         json.RawMessage
}

// grantSchemas are the known login/refresh response shapes, tried in order:
// enveloped camelCase (current), enveloped snake_case, bare camelCase, bare
// snake_case. A schema matches when it yields an access token.
var grantSchemas = []func([]byte) (wireGrant, bool){
	decodeGrantEnvelopeCamel,
	decodeGrantEnvelopeSnake,
	decodeGrantBareCamel,
	decodeGrantBareSnake,
}

func decodeGrantEnvelopeCamel(data []byte) (wireGrant, bool) {
	var wire struct {
		Data struct {
			AccessToken  string          `json:"accessToken"`
			RefreshToken string          `json:"refreshToken"`
			User         json.RawMessage `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return wireGrant{}, false
	}
	if wire.Data.AccessToken == "" {
		return wireGrant{}, false
	}
	return wireGrant{
		AccessToken:  wire.Data.AccessToken,
		RefreshToken: wire.Data.RefreshToken,
		User:         wire.Data.User,
	}, true
}

func decodeGrantEnvelopeSnake(data []byte) (wireGrant, bool) {
	var wire struct {
		Data struct {
			AccessToken  string          `json:"access_token"`
			RefreshToken string          `json:"refresh_token"`
			User         json.RawMessage `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return wireGrant{}, false
	}
	if wire.Data.AccessToken == "" {
		return wireGrant{}, false
	}
	return wireGrant{
		AccessToken:  wire.Data.AccessToken,
		RefreshToken: wire.Data.RefreshToken,
		User:         wire.Data.User,
	}, true
}

func decodeGrantBareCamel(data []byte) (wireGrant, bool) {
	var wire struct {
		AccessToken  string          `json:"accessToken"`
		RefreshToken string          `json:"refreshToken"`
		User         json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return wireGrant{}, false
	}
	if wire.AccessToken == "" {
		return wireGrant{}, false
	}
	return wireGrant(wire), true
}

func decodeGrantBareSnake(data []byte) (wireGrant, bool) {
	var wire struct {
		AccessToken  string          `json:"access_token"`
		RefreshToken string          `json:"refresh_token"`
		User         json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return wireGrant{}, false
	}
	if wire.AccessToken == "" {
		return wireGrant{}, false
	}
	return wireGrant(wire), true
}

// parseGrant tries the known grant schemas in order and fails loudly when
// none matches. requireUser is set on the login path, where a grant without a
// user record is useless to the session manager.
func parseGrant(body []byte, requireUser bool) (*sessionkit.TokenGrant, error) {
	for _, decode := range grantSchemas {
		wire, ok := decode(body)
		if !ok {
			continue
		}

		grant := &sessionkit.TokenGrant{
			AccessToken:  wire.AccessToken,
			RefreshToken: wire.RefreshToken,
		}
		if len(wire.User) > 0 && !bytes.Equal(bytes.TrimSpace(wire.User), []byte("null")) {
			user, err := parseUser(wire.User)
			if err != nil {
				return nil, err
			}
			grant.User = user
		}
		if requireUser && grant.User == nil {
			return nil, fmt.Errorf("%w: grant carries no user record", sessionkit.ErrSchemaUnknown)
		}
		return grant, nil
	}
	return nil, fmt.Errorf("%w: token grant", sessionkit.ErrSchemaUnknown)
}

/*
====================================
USER SCHEMAS
====================================
*/

// wireUser carries every field name either user shape has used. id, email,
// role, and roles are spelled the same in both conventions; the rest appears
// once per convention and the camelCase spelling wins when both are present.
type wireUser struct {
	ID    flexString `json:"id"`
	Email string     `json:"email"`
	Role  string     `json:"role"`
	Roles []string   `json:"roles"`

	FirstName      string `json:"firstName"`
	FirstNameSnake string `json:"first_name"`
	LastName       string `json:"lastName"`
	LastNameSnake  string `json:"last_name"`

	IsAdmin      *bool `json:"isAdmin"`
	IsAdminSnake *bool `json:"is_admin"`

	RequirePasswordChange      *bool `json:"requirePasswordChange"`
	RequirePasswordChangeSnake *bool `json:"require_password_change"`

	IsActive      *bool `json:"isActive"`
	IsActiveSnake *bool `json:"is_active"`

	LastLoginAt      flexTime `json:"lastLoginAt"`
	LastLoginAtSnake flexTime `json:"last_login_at"`

	// Legacy user shape extras, preserved but not first-class.
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	DateOfBirth      string `json:"dateOfBirth"`
	DateOfBirthSnake string `json:"date_of_birth"`
}

func pickString(camel, snake string) string {
	if camel != "" {
		return camel
	}
	return snake
}

func pickBool(camel, snake *bool, fallback bool) bool {
	if camel != nil {
		return *camel
	}
	if snake != nil {
		return *snake
	}
	return fallback
}

func pickTime(camel, snake flexTime) time.Time {
	if !camel.t.IsZero() {
		return camel.t
	}
	return snake.t
}

// parseUser decodes a user record tolerating both naming conventions. A body
// counts as a user only when it yields an ID or an email; anything else is
// rejected loudly instead of degrading to an empty record.
func parseUser(raw json.RawMessage) (*sessionkit.UserRecord, error) {
	var wire wireUser
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: user record: %v", sessionkit.ErrSchemaUnknown, err)
	}
	if wire.ID == "" && wire.Email == "" {
		return nil, fmt.Errorf("%w: user record carries no id or email", sessionkit.ErrSchemaUnknown)
	}

	user := &sessionkit.UserRecord{
		ID:                    string(wire.ID),
		Email:                 wire.Email,
		FirstName:             pickString(wire.FirstName, wire.FirstNameSnake),
		LastName:              pickString(wire.LastName, wire.LastNameSnake),
		IsAdmin:               pickBool(wire.IsAdmin, wire.IsAdminSnake, false),
		Role:                  wire.Role,
		Roles:                 wire.Roles,
		RequirePasswordChange: pickBool(wire.RequirePasswordChange, wire.RequirePasswordChangeSnake, false),
		// Absent means active; only an explicit false deactivates.
		IsActive: pickBool(wire.IsActive, wire.IsActiveSnake, true),
	}
	if t := pickTime(wire.LastLoginAt, wire.LastLoginAtSnake); !t.IsZero() {
		user.LastLoginAt = &t
	}

	extra := map[string]string{}
	if wire.Phone != "" {
		extra["phone"] = wire.Phone
	}
	if wire.Address != "" {
		extra["address"] = wire.Address
	}
	if dob := pickString(wire.DateOfBirth, wire.DateOfBirthSnake); dob != "" {
		extra["date_of_birth"] = dob
	}
	if len(extra) > 0 {
		user.Extra = extra
	}
	return user, nil
}

// parseUserResponse handles the profile-endpoint shapes in order: enveloped
// {data:{user}}, enveloped {data:user}, {user:...}, bare user.
func parseUserResponse(body []byte) (*sessionkit.UserRecord, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
		User json.RawMessage `json:"user"`
	}
	candidates := []json.RawMessage{}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if len(envelope.Data) > 0 {
			var inner struct {
				User json.RawMessage `json:"user"`
			}
			if err := json.Unmarshal(envelope.Data, &inner); err == nil && len(inner.User) > 0 {
				candidates = append(candidates, inner.User)
			}
			candidates = append(candidates, envelope.Data)
		}
		if len(envelope.User) > 0 {
			candidates = append(candidates, envelope.User)
		}
	}
	candidates = append(candidates, body)

	for _, raw := range candidates {
		if user, err := parseUser(raw); err == nil {
			return user, nil
		}
	}
	return nil, fmt.Errorf("%w: profile response", sessionkit.ErrSchemaUnknown)
}
