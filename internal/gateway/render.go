package gateway

import (
	"net/http"

	"github.com/storefronthq/gateway/internal/httputil"
	"github.com/storefronthq/gateway/internal/session"
)

// Renderer is the page-rendering collaborator consumed by page handlers.
// Templating itself lives outside the gateway core; the core only decides
// which view to show and with what data.
type Renderer interface {
	Render(w http.ResponseWriter, status int, view string, data map[string]any)
}

// JSONRenderer renders page data as JSON, for headless deployments and
// tests.
type JSONRenderer struct{}

// Render implements Renderer.
func (JSONRenderer) Render(w http.ResponseWriter, status int, view string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["view"] = view
	httputil.WriteJSON(w, status, data)
}

// pageData builds the base view data every page receives.
func pageData(sess *session.Session, extra map[string]any) map[string]any {
	data := map[string]any{"user": sess.Identity}
	for k, v := range extra {
		data[k] = v
	}
	return data
}
