package backup

import (
	"fmt"
)

// DefaultKeepCount is the default number of snapshots to retain.
const DefaultKeepCount = 30

// PruneResult contains information about what was pruned.
type PruneResult struct {
	Deleted []Info
	Kept    int
}

// Prune removes old snapshots, keeping only the most recent N.
func (m *Manager) Prune(keep int) (*PruneResult, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep count must be non-negative")
	}

	snapshots, err := m.List()
	if err != nil {
		return nil, err
	}

	result := &PruneResult{}

	// Snapshots are already sorted newest first.
	if len(snapshots) <= keep {
		result.Kept = len(snapshots)
		return result, nil
	}

	toDelete := snapshots[keep:]
	result.Kept = keep

	for _, snap := range toDelete {
		if err := m.Delete(snap.ID); err != nil {
			return nil, fmt.Errorf("failed to delete backup %s: %w", snap.ID, err)
		}
		result.Deleted = append(result.Deleted, snap)
	}

	return result, nil
}
