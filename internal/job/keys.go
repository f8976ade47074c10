package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResultKey names an uploaded archive: file-<DD-MM-YYYY>-<uuid>.zip, dated
// at completion time.
func ResultKey(completedAt time.Time) string {
	return fmt.Sprintf("file-%s-%s.zip", completedAt.Format("02-01-2006"), uuid.NewString())
}
