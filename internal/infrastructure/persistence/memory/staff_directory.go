package memory

import (
	"context"
	"sync"
)

// StaffDirectory インメモリ実装のStaffDirectory
type StaffDirectory struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // merchantID -> staffIDs
}

// NewStaffDirectory 新しいStaffDirectoryを作成
func NewStaffDirectory() *StaffDirectory {
	return &StaffDirectory{members: make(map[string]map[string]struct{})}
}

// Add スタッフを加盟店に所属させる
func (d *StaffDirectory) Add(merchantID, staffID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.members[merchantID] == nil {
		d.members[merchantID] = make(map[string]struct{})
	}
	d.members[merchantID][staffID] = struct{}{}
}

// IsStaffOf スタッフが加盟店に所属しているかを返す
func (d *StaffDirectory) IsStaffOf(_ context.Context, staffID, merchantID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.members[merchantID][staffID]
	return ok, nil
}
