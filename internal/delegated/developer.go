package delegated

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"slices"
	"strings"
)

// DeveloperName is the name of the built-in form provider.
const DeveloperName = "developer"

// Developer options, read from ProviderConfig.Options.
const (
	// DeveloperOptFields is a comma-separated list of form fields. Default "name,email".
	DeveloperOptFields = "fields"
	// DeveloperOptUIDField names the field used as uid. Default "email".
	DeveloperOptUIDField = "uid_field"
)

var developerForm = template.Must(template.New("developer").Parse(`<!DOCTYPE html>
<html>
<head><title>User Info</title></head>
<body>
<form method="post" action="{{.Action}}">
{{range .Fields}}<label for="{{.}}">{{.}}:</label> <input type="text" id="{{.}}" name="{{.}}">
{{end}}<button type="submit">Sign In</button>
</form>
</body>
</html>
`))

// Developer is a provider without secrets: it asks for a few fields and
// trusts them. Meant for local development and tests.
type Developer struct {
	callbackPath string
	fields       []string
	uidField     string
}

// DeveloperFactory is the ProviderFactory for Developer.
func DeveloperFactory(cfg ProviderConfig) (Provider, error) {
	d := &Developer{
		callbackPath: cfg.CallbackPath,
		fields:       []string{"name", "email"},
		uidField:     "email",
	}
	if v := strings.TrimSpace(cfg.Options[DeveloperOptFields]); v != "" {
		d.fields = d.fields[:0]
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" && !slices.Contains(d.fields, f) {
				d.fields = append(d.fields, f)
			}
		}
	}
	if v := strings.TrimSpace(cfg.Options[DeveloperOptUIDField]); v != "" {
		d.uidField = v
	}
	if len(d.fields) == 0 {
		return nil, fmt.Errorf("developer: %s is empty", DeveloperOptFields)
	}
	if !slices.Contains(d.fields, d.uidField) {
		return nil, fmt.Errorf("developer: %s %q is not one of %v", DeveloperOptUIDField, d.uidField, d.fields)
	}
	return d, nil
}

func (d *Developer) Name() string { return DeveloperName }

func (d *Developer) RequestPhase(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	return developerForm.Execute(w, struct {
		Action string
		Fields []string
	}{d.callbackPath, d.fields})
}

// CallbackPhase exige name cuando es uno de los campos. El uid cae a name si
// el campo uid llega vacío.
func (d *Developer) CallbackPhase(_ context.Context, r *http.Request) (Result, error) {
	if err := r.ParseForm(); err != nil {
		return nil, Fail(KindInvalidCredentials, err)
	}
	info := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		info[f] = strings.TrimSpace(r.Form.Get(f))
	}
	name := strings.TrimSpace(r.Form.Get("name"))
	if slices.Contains(d.fields, "name") && name == "" {
		return nil, Fail(KindInvalidCredentials, nil)
	}
	uid, _ := info[d.uidField].(string)
	if uid == "" {
		uid = name
	}
	if uid == "" {
		return nil, Fail(KindInvalidCredentials, nil)
	}
	return Result{
		"provider":    DeveloperName,
		"uid":         uid,
		"info":        info,
		"credentials": map[string]any{},
		"extra":       map[string]any{},
	}, nil
}
