package services

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/tourvault/internal/logging"
)

// Ingestor hands a verified artifact over to the tour ingestion pipeline.
// Ingestion itself (unpacking, cataloguing, publishing) is a separate system;
// the upload engine only calls it after assembly or storage verification
// succeeded, never with a partial artifact.
type Ingestor interface {
	Ingest(ctx context.Context, artifactPath, declaredName string) (publicURL string, err error)
}

// LoggingIngestor is the stand-in implementation used until the real
// pipeline is attached. It logs the hand-off and derives a public URL from
// the configured base.
type LoggingIngestor struct {
	baseURL string
	logger  logging.Logger
}

func NewLoggingIngestor(baseURL string, logger logging.Logger) *LoggingIngestor {
	return &LoggingIngestor{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With("module", "ingest"),
	}
}

func (i *LoggingIngestor) Ingest(ctx context.Context, artifactPath, declaredName string) (string, error) {
	i.logger.Info(ctx, "artifact handed to ingestion", "path", artifactPath, "name", declaredName)
	return i.baseURL + "/" + filepath.Base(artifactPath), nil
}
