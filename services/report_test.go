package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
)

func TestReportPrint(t *testing.T) {
	var buf bytes.Buffer
	s := models.NewRunSummary(models.PlatformCvGe)
	s.TotalFound, s.Successful, s.Failed, s.Incomplete = 5, 3, 1, 1
	s.AddError("job 9: fetch https://www.cv.ge/announcement/9: gave up after 3 attempts")
	s.Finish()

	NewReportService(&buf).Print(s)

	out := buf.String()
	assert.Contains(t, out, "CV_GE")
	assert.Contains(t, out, s.RunID.String())
	assert.Contains(t, out, "job 9")
}
