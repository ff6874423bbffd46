package webapp

import (
	"net/http"
	"time"

	"cctv-checklist/internal/app"
)

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	db := map[string]any{"path": s.deps.DBPath}
	if s.deps.Store != nil {
		schemaVersion, _ := s.deps.Store.GetSchemaMetaValue(r.Context(), "schema_version")
		usage, _ := s.deps.Store.BlobUsage(r.Context())
		db["schema_version"] = schemaVersion
		db["blob_bytes"] = usage
		db["quota_bytes"] = s.deps.Store.MaxBlobBytes
	}

	cat := s.deps.Catalog
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().Unix(),
		"app": map[string]any{
			"version":    app.Version,
			"commit":     app.Commit,
			"build_time": app.BuildTime,
		},
		"db": db,
		"catalog": map[string]any{
			"version":   cat.Version(),
			"sha256":    cat.SHA256(),
			"source":    cat.Source(),
			"sections":  len(cat.Sections()),
			"questions": cat.QuestionCount(),
		},
		"delivery": map[string]any{
			"enabled": s.deps.Sender != nil,
			"relay":   s.deps.Relay != nil,
		},
	})
}
