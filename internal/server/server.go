package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"techrider/internal/domain"
	"techrider/internal/engine"
	"techrider/internal/metrics"
	"techrider/internal/projection"
	"techrider/internal/repo"
	"techrider/internal/rollup"
)

// RoleHeader names the header carrying the acting party.
const RoleHeader = "X-Rider-Role"

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Log      *logrus.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"no_changes"`
	Message string         `json:"message" example:"revision of item 7 has no changes"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"field\":\"title\"}"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the rider API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(requestLogger(log))
	router.Handle("/metrics", promhttp.Handler())

	hcfg := huma.DefaultConfig("Tech Rider API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerItems(group, cfg.Engine)
	registerIntents(group, cfg.Engine)
	registerBrief(group, cfg.Engine)
	registerFeed(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			if r.URL.Path != "/metrics" {
				metrics.RecordRequest(r.Method, status, elapsed)
			}
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   status,
				"duration": elapsed.String(),
			}).Info("request")
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		details := map[string]any{"reason": verr.Reason}
		if verr.Field != "" {
			details["field"] = verr.Field
		}
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), details)
	}
	var noop *domain.NoOpError
	if errors.As(err, &noop) {
		return newAPIError(http.StatusConflict, "no_changes", err.Error(), map[string]any{"item_id": noop.ItemID})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// actingRole parses the role header. Roles are selected by the client; there
// is no authentication.
func actingRole(raw string) (domain.Role, error) {
	role := domain.Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", newAPIError(http.StatusBadRequest, "bad_request", RoleHeader+" must be BAND or ENGINEER", map[string]any{"header": RoleHeader})
	}
	return role, nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Tech Rider API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Select the acting party with the %s header (BAND or ENGINEER).
    </p>
  </body>
</html>`, specURL, RoleHeader)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

// ItemPath is the id and acting party shared by per-item routes.
type ItemPath struct {
	ID   string `path:"id"`
	Role string `header:"X-Rider-Role" doc:"Acting party, BAND or ENGINEER"`
}

func registerItems(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-items",
		Method:      http.MethodGet,
		Path:        "/items",
		Summary:     "List items in brief order",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Category string `query:"category"`
		Status   string `query:"status"`
	}) (*struct {
		Body ItemListResponse `json:"body"`
	}, error) {
		items, err := e.ListItems(ctx, repo.ItemFilters{
			Category: domain.Category(strings.ToUpper(input.Category)),
			Status:   domain.Status(strings.ToUpper(input.Status)),
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Item{}
		}
		return &struct {
			Body ItemListResponse `json:"body"`
		}{Body: ItemListResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-item",
		Method:        http.MethodPost,
		Path:          "/items",
		Summary:       "Create item",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Role string            `header:"X-Rider-Role"`
		Body CreateItemRequest `json:"body"`
	}) (*struct {
		Body domain.Item `json:"body"`
	}, error) {
		role, err := actingRole(input.Role)
		if err != nil {
			return nil, err
		}
		item, err := e.CreateItem(ctx, input.Body.Draft(), role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Item `json:"body"`
		}{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-item",
		Method:      http.MethodGet,
		Path:        "/items/{id}",
		Summary:     "Item detail as seen by the acting party",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *ItemPath) (*struct {
		Body projection.View `json:"body"`
	}, error) {
		role, err := actingRole(input.Role)
		if err != nil {
			return nil, err
		}
		view, err := e.View(ctx, input.ID, role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body projection.View `json:"body"`
		}{Body: view}, nil
	})
}

type itemResponse struct {
	Body domain.Item `json:"body"`
}

type intentResponse struct {
	Body IntentResponse `json:"body"`
}

func registerIntents(api huma.API, e engine.Engine) {
	itemErrors := []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError}

	huma.Register(api, huma.Operation{
		OperationID: "propose-revision",
		Method:      http.MethodPost,
		Path:        "/items/{id}/revisions",
		Summary:     "Propose a revision for the other party to accept",
		Errors:      append([]int{http.StatusConflict}, itemErrors...),
	}, func(ctx context.Context, input *struct {
		ItemPath
		Body RevisionRequest `json:"body"`
	}) (*itemResponse, error) {
		role, err := actingRole(input.Role)
		if err != nil {
			return nil, err
		}
		item, err := e.ProposeRevision(ctx, input.ID, role, input.Body.FieldSet())
		if err != nil {
			return nil, handleError(err)
		}
		return &itemResponse{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-provider",
		Method:      http.MethodPut,
		Path:        "/items/{id}/provider",
		Summary:     "Change who provides the item",
		Errors:      itemErrors,
	}, func(ctx context.Context, input *struct {
		ItemPath
		Body ProviderRequest `json:"body"`
	}) (*itemResponse, error) {
		role, err := actingRole(input.Role)
		if err != nil {
			return nil, err
		}
		item, err := e.UpdateProvider(ctx, input.ID, role, domain.Provider(input.Body.Provider))
		if err != nil {
			return nil, handleError(err)
		}
		return &itemResponse{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-status",
		Method:      http.MethodPut,
		Path:        "/items/{id}/status",
		Summary:     "Request a status change",
		Description: "Requests the negotiation rules do not allow return the unchanged item with applied=false.",
		Errors:      itemErrors,
	}, func(ctx context.Context, input *struct {
		ItemPath
		Body StatusRequest `json:"body"`
	}) (*intentResponse, error) {
		role, err := actingRole(input.Role)
		if err != nil {
			return nil, err
		}
		item, applied, err := e.UpdateStatus(ctx, input.ID, role, domain.Status(input.Body.Status))
		if err != nil {
			return nil, handleError(err)
		}
		return &intentResponse{Body: IntentResponse{Item: item, Applied: applied}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reopen-item",
		Method:      http.MethodPost,
		Path:        "/items/{id}/reopen",
		Summary:     "Reopen an item with a message",
		Errors:      itemErrors,
	}, func(ctx context.Context, input *struct {
		ItemPath
		Body MessageRequest `json:"body"`
	}) (*intentResponse, error) {
		role, err := actingRole(input.Role)
		if err != nil {
			return nil, err
		}
		item, applied, err := e.Reopen(ctx, input.ID, role, input.Body.Message)
		if err != nil {
			return nil, handleError(err)
		}
		return &intentResponse{Body: IntentResponse{Item: item, Applied: applied}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-comment",
		Method:      http.MethodPost,
		Path:        "/items/{id}/comments",
		Summary:     "Comment on an item",
		Errors:      itemErrors,
	}, func(ctx context.Context, input *struct {
		ItemPath
		Body MessageRequest `json:"body"`
	}) (*itemResponse, error) {
		role, err := actingRole(input.Role)
		if err != nil {
			return nil, err
		}
		item, err := e.AddComment(ctx, input.ID, role, input.Body.Message)
		if err != nil {
			return nil, handleError(err)
		}
		return &itemResponse{Body: item}, nil
	})
}

func registerBrief(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "summary",
		Method:      http.MethodGet,
		Path:        "/summary",
		Summary:     "Status counters for the brief",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body rollup.Summary `json:"body"`
	}, error) {
		sum, err := e.Summary(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body rollup.Summary `json:"body"`
		}{Body: sum}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "show-spec",
		Method:      http.MethodGet,
		Path:        "/spec",
		Summary:     "Shareable show document",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body rollup.ShowSpec `json:"body"`
	}, error) {
		spec, err := e.ShowSpec(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body rollup.ShowSpec `json:"body"`
		}{Body: spec}, nil
	})
}

func registerFeed(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-feed",
		Method:      http.MethodGet,
		Path:        "/feed",
		Summary:     "Brief-wide chat and updates, oldest first",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Kind  string `query:"kind" enum:"ALL,CHAT,UPDATES" default:"ALL"`
		Limit int    `query:"limit" minimum:"0" maximum:"1000" default:"100"`
	}) (*struct {
		Body FeedResponse `json:"body"`
	}, error) {
		msgs, err := e.Feed(ctx, repo.FeedFilters{Kind: input.Kind, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		if msgs == nil {
			msgs = []domain.ChatMessage{}
		}
		return &struct {
			Body FeedResponse `json:"body"`
		}{Body: FeedResponse{Messages: msgs}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "post-message",
		Method:        http.MethodPost,
		Path:          "/feed",
		Summary:       "Post a chat message",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Role string         `header:"X-Rider-Role"`
		Body MessageRequest `json:"body"`
	}) (*struct {
		Body domain.ChatMessage `json:"body"`
	}, error) {
		role, err := actingRole(input.Role)
		if err != nil {
			return nil, err
		}
		msg, err := e.PostMessage(ctx, role, input.Body.Message)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ChatMessage `json:"body"`
		}{Body: msg}, nil
	})
}
