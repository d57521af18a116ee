package config

// DefaultVisibilityThreshold is the minimum similarity for a graph edge.
const DefaultVisibilityThreshold = 0.15

// DefaultTopEdges is how many top-scoring edges the summary lists.
const DefaultTopEdges = 10

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/truework/data/db/submissions.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/truework/data/indices/bleve"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "/usr/local/var/truework/data/uploads"
	}
	if cfg.Analysis.VisibilityThreshold == 0 {
		cfg.Analysis.VisibilityThreshold = DefaultVisibilityThreshold
	}
	if cfg.Analysis.TopEdges == 0 {
		cfg.Analysis.TopEdges = DefaultTopEdges
	}
	if cfg.Analysis.CanvasWidth == 0 {
		cfg.Analysis.CanvasWidth = 1200
	}
	if cfg.Analysis.CanvasHeight == 0 {
		cfg.Analysis.CanvasHeight = 800
	}
	// Workers 0 means one per CPU; resolved at run time.
	if cfg.Intake.Extensions == nil {
		cfg.Intake.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".odt", ".rtf", ".xlsx"}
	}
	if len(cfg.Intake.Directories) > 0 && cfg.Intake.Recursive == nil {
		t := true
		cfg.Intake.Recursive = &t
	}
}
