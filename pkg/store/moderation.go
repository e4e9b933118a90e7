package store

import (
	"encoding/json"
	"fmt"

	"parlor/pkg/logger"
	"parlor/pkg/models"
	"parlor/pkg/store/keys"
)

// SaveBlock persists a directional block row. Overwriting an existing
// row keeps the original timestamp, so repeated blocks stay idempotent.
func SaveBlock(rel *models.BlockRelation) error {
	key := keys.GenBlockKey(rel.Blocker, rel.Blocked)
	if v, err := GetKey(key); err == nil {
		var cur models.BlockRelation
		if json.Unmarshal(v, &cur) == nil && cur.TS != 0 {
			rel.TS = cur.TS
		}
	}
	data, err := json.Marshal(rel)
	if err != nil {
		return fmt.Errorf("failed to marshal block: %w", err)
	}
	if err := SaveKey(key, data); err != nil {
		logger.Error("save_block_failed", "blocker", rel.Blocker, "blocked", rel.Blocked, "error", err)
		return err
	}
	return nil
}

// DeleteBlock removes a directional block row; removing an absent row
// is a no-op.
func DeleteBlock(blocker, blocked string) error {
	return DeleteKey(keys.GenBlockKey(blocker, blocked))
}

// BlockExists reports whether blocker has blocked blocked.
func BlockExists(blocker, blocked string) (bool, error) {
	_, err := GetKey(keys.GenBlockKey(blocker, blocked))
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// BlockedEither reports whether a block exists between the two users
// in either direction. Message sends and invitations check this.
func BlockedEither(a, b string) (bool, error) {
	if ok, err := BlockExists(a, b); err != nil || ok {
		return ok, err
	}
	return BlockExists(b, a)
}

// ListBlocks returns every block issued by one user.
func ListBlocks(blocker string) ([]models.BlockRelation, error) {
	var out []models.BlockRelation
	err := scanPrefix(keys.GenBlockOutPrefix(blocker), func(_ string, v []byte) bool {
		var rel models.BlockRelation
		if err := json.Unmarshal(v, &rel); err == nil {
			out = append(out, rel)
		}
		return true
	})
	return out, err
}

// SaveReport persists a report row.
func SaveReport(rp *models.Report) error {
	data, err := json.Marshal(rp)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := SaveKey(keys.GenReportKey(rp.ID), data); err != nil {
		logger.Error("save_report_failed", "report", rp.ID, "error", err)
		return err
	}
	return nil
}

// GetReport loads a report row.
func GetReport(reportID string) (*models.Report, error) {
	v, err := GetKey(keys.GenReportKey(reportID))
	if err != nil {
		return nil, err
	}
	var rp models.Report
	if err := json.Unmarshal(v, &rp); err != nil {
		return nil, fmt.Errorf("invalid report row: %w", err)
	}
	return &rp, nil
}

// UpdateReport applies fn to the report under its lock and saves the
// result, serializing concurrent reviews.
func UpdateReport(reportID string, fn func(*models.Report) error) (*models.Report, error) {
	var out *models.Report
	err := WithLock(keys.GenReportKey(reportID), func() error {
		rp, err := GetReport(reportID)
		if err != nil {
			return err
		}
		if err := fn(rp); err != nil {
			return err
		}
		if err := SaveReport(rp); err != nil {
			return err
		}
		out = rp
		return nil
	})
	return out, err
}

// ListReports returns every report, optionally filtered by status.
func ListReports(status models.ReportStatus) ([]models.Report, error) {
	var out []models.Report
	err := scanPrefix(keys.ReportPrefix, func(_ string, v []byte) bool {
		var rp models.Report
		if err := json.Unmarshal(v, &rp); err != nil {
			return true
		}
		if status != "" && rp.Status != status {
			return true
		}
		out = append(out, rp)
		return true
	})
	return out, err
}
