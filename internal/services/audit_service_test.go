package services

import (
	"strings"
	"testing"

	"ativosaber/internal/models"
	"ativosaber/internal/testutil"
)

func TestAuditLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAuditService(db)

	user := testutil.CreateTestUser(t, db)
	asset := testutil.CreateTestAsset(t, db, user.ID)

	svc.Log(user.ID, models.AuditActionCreateAsset, "asset", asset.ID, "10.0.0.1", map[string]interface{}{
		"name":          asset.Name,
		"password":      "hunter2",
		"refresh_token": "abc",
	})

	var entries []models.AuditLog
	if err := db.Where("user_id = ?", user.ID).Find(&entries).Error; err != nil {
		t.Fatalf("failed to load audit logs: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit log entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.Action != "CREATE_ASSET" || entry.ResourceID != asset.ID || entry.IPAddress != "10.0.0.1" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if !strings.Contains(entry.Changes, asset.Name) {
		t.Errorf("expected asset name in changes, got %s", entry.Changes)
	}
	if strings.Contains(entry.Changes, "hunter2") || strings.Contains(entry.Changes, "refresh_token") {
		t.Errorf("sensitive keys leaked into audit log: %s", entry.Changes)
	}
}

func TestAuditLog_NilChanges(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAuditService(db)

	user := testutil.CreateTestUser(t, db)
	svc.Log(user.ID, models.AuditActionRegister, "user", user.ID, "", nil)

	var entry models.AuditLog
	if err := db.Where("user_id = ?", user.ID).First(&entry).Error; err != nil {
		t.Fatalf("expected audit entry: %v", err)
	}
	if entry.Changes != "" {
		t.Errorf("expected empty changes, got %q", entry.Changes)
	}
}
