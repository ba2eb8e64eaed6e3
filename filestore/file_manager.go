package filestore

import (
	"fmt"
	"io"
	"time"
)

type FileManager interface {
	Create(dir, fileName string, reader io.Reader) error
	Get(dir, fileName string) (io.ReadCloser, error)
	GetBucketName() string
	GetROIReportFilePathAndName(modelID string, from, to time.Time) (string, string)
}

const rawReportDir = "raw"

// GetROIReportDir reports are grouped by attribution model. Raw mode reports
// go to their own dir.
func GetROIReportDir(modelID string) string {
	if modelID == "" {
		modelID = rawReportDir
	}
	return fmt.Sprintf("reports/roi/%s/", modelID)
}

func GetROIReportFileName(from, to time.Time) string {
	return fmt.Sprintf("roi_%s_%s.xlsx", from.UTC().Format("20060102"), to.UTC().Format("20060102"))
}
