package authn

import "encoding/json"

// Serializer converts users to and from their session representation.
type Serializer interface {
	Serialize(user any) (string, error)
	Deserialize(raw string) (any, error)
}

// JSONSerializer stores users as JSON. Objects come back as map[string]any.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(user any) (string, error) {
	b, err := json.Marshal(user)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (JSONSerializer) Deserialize(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}
