package evidence

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/kavach-labs/kavach/internal/extract"
	"github.com/kavach-labs/kavach/pkg/models"
)

// SubmissionDocument is the serialized form handed to the external reporting
// collaborator. It carries the package plus a derived intelligence report so
// a reviewer can triage without replaying the call.
type SubmissionDocument struct {
	Format       string                  `json:"format"`
	GeneratedAt  time.Time               `json:"generated_at"`
	Package      *models.EvidencePackage `json:"package"`
	Intelligence extract.Report          `json:"intelligence"`
}

const submissionFormat = "kavach-evidence-v1"

// Export renders the package as a submission document. The package itself is
// not modified; submission accounting happens through UpdateStatus.
func Export(pkg *models.EvidencePackage) ([]byte, error) {
	doc := SubmissionDocument{
		Format:       submissionFormat,
		GeneratedAt:  time.Now().UTC(),
		Package:      pkg,
		Intelligence: extract.BuildReport(pkg.SessionID, pkg.Entities, pkg.Transcript),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission document: %w", err)
	}
	return data, nil
}
