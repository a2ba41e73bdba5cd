package reconcile

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// templFS contains the web pages.
//
//go:embed pages/templates/*
var templFS embed.FS

var templFuncs = template.FuncMap{
	"add": func(a, b int) int {
		return a + b
	},
	"duration": func(start, end time.Time) time.Duration {
		return end.Sub(start).Round(time.Millisecond)
	},
}

// httpStatusData is used as template data when rendering the status page.
type httpStatusData struct {
	Report  *SweepReport
	Counts  *SweepCounts
	Running bool

	// CreatedAt is the time when this datastructure was created.
	CreatedAt time.Time
}

// HTTPService serves a web page showing the result of the last
// reconciliation sweep.
type HTTPService struct {
	reconciler *Reconciler
	templates  *template.Template
	logger     *zap.Logger
}

func NewHTTPService(reconciler *Reconciler) *HTTPService {
	return &HTTPService{
		reconciler: reconciler,
		templates: template.Must(
			template.New("").
				Funcs(templFuncs).
				ParseFS(templFS, "pages/templates/*"),
		),
		logger: reconciler.logger.Named("http_service"),
	}
}

func (h *HTTPService) RegisterHandlers(mux *http.ServeMux, endpoint string) {
	mux.HandleFunc(endpoint, h.HandlerStatusFunc)
}

func (h *HTTPService) HandlerStatusFunc(respWr http.ResponseWriter, _ *http.Request) {
	data := httpStatusData{
		Report:    h.reconciler.LastReport(),
		Running:   h.reconciler.Running(),
		CreatedAt: time.Now(),
	}

	if data.Report != nil {
		data.Counts = data.Report.Counts()
	}

	err := h.templates.ExecuteTemplate(respWr, "status.html.tmpl", &data)
	if err != nil {
		h.logger.Info("applying template and sending back result failed", zap.Error(err))
		http.Error(respWr, err.Error(), http.StatusInternalServerError)
		return
	}
}
