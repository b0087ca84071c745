// internal/pair/pair.go
//
// Scan-pairing records: one player is assigned a target to find and scan.
// Pure store logic; the camera/QR side lives in the client.

package pair

import (
	"context"
	"errors"

	"github.com/injaneity/victordle/internal/docstore"
)

// Collection is the pair record collection, keyed by the seeking player.
const Collection = "pairs"

// Pair records one player's assigned target and completion state.
type Pair struct {
	UserID    string `json:"userId"`
	TargetID  string `json:"targetId"`
	Timestamp int64  `json:"timestamp"`
	Completed bool   `json:"completed"`
}

// Service is a constructed service object over the store.
type Service struct {
	store docstore.Store
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

// Create assigns targetID to userID, replacing any existing assignment.
func (s *Service) Create(ctx context.Context, userID, targetID string) error {
	return s.store.Set(ctx, Collection, userID, docstore.Doc{
		"userId":    userID,
		"targetId":  targetID,
		"timestamp": docstore.Now(),
		"completed": false,
	})
}

// Current returns userID's active pair, or nil if none exists.
func (s *Service) Current(ctx context.Context, userID string) (*Pair, error) {
	doc, err := s.store.Get(ctx, Collection, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p Pair
	if err := docstore.Decode(doc, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// VerifyAndComplete marks the scanner's pair completed if scannedID is the
// assigned target and the pair is still open. Reports whether it completed.
// Scoring is the caller's concern.
func (s *Service) VerifyAndComplete(ctx context.Context, scannerID, scannedID string) (bool, error) {
	p, err := s.Current(ctx, scannerID)
	if err != nil {
		return false, err
	}
	if p == nil || p.TargetID != scannedID || p.Completed {
		return false, nil
	}
	if err := s.store.Merge(ctx, Collection, scannerID, docstore.Doc{"completed": true}); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes userID's pair record. Removing an absent record is fine.
func (s *Service) Remove(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, Collection, userID)
}
