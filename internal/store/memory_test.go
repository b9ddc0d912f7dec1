package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestMemoryStore_UpsertAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rule := json.RawMessage(`{"type":"condition","attribute_name":"age","operator":"gte","reference_value":18}`)
	params := UpsertParams{
		Key:         "adult-content",
		Description: "Gate adult content behind an age check",
		Enabled:     true,
		Sample:      50,
		Rule:        rule,
		Env:         "prod",
	}

	if err := store.UpsertRuleSet(ctx, params); err != nil {
		t.Fatalf("UpsertRuleSet failed: %v", err)
	}

	rs, err := store.GetRuleSet(ctx, "adult-content", "prod")
	if err != nil {
		t.Fatalf("GetRuleSet failed: %v", err)
	}

	if rs.Key != "adult-content" {
		t.Errorf("Expected key 'adult-content', got '%s'", rs.Key)
	}
	if !rs.Enabled {
		t.Errorf("Expected Enabled to be true, got false")
	}
	if rs.Sample != 50 {
		t.Errorf("Expected Sample to be 50, got %d", rs.Sample)
	}
	if string(rs.Rule) != string(rule) {
		t.Errorf("Rule payload changed: got %s", rs.Rule)
	}
	if rs.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be set")
	}
}

func TestMemoryStore_ListRuleSets(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seed := []UpsertParams{
		{Key: "checkout-rules", Description: "Checkout", Enabled: true, Sample: 100, Env: "prod"},
		{Key: "beta-access", Description: "Beta", Enabled: false, Sample: 0, Env: "prod"},
		{Key: "beta-access", Description: "Beta (dev)", Enabled: true, Sample: 100, Env: "dev"},
	}

	for _, p := range seed {
		if err := store.UpsertRuleSet(ctx, p); err != nil {
			t.Fatalf("UpsertRuleSet failed: %v", err)
		}
	}

	prod, err := store.ListRuleSets(ctx, "prod")
	if err != nil {
		t.Fatalf("ListRuleSets failed: %v", err)
	}
	if len(prod) != 2 {
		t.Fatalf("Expected 2 rule sets for prod, got %d", len(prod))
	}
	// Sorted by key for stable output.
	if prod[0].Key != "beta-access" || prod[1].Key != "checkout-rules" {
		t.Errorf("Expected keys sorted [beta-access checkout-rules], got [%s %s]", prod[0].Key, prod[1].Key)
	}

	dev, err := store.ListRuleSets(ctx, "dev")
	if err != nil {
		t.Fatalf("ListRuleSets failed: %v", err)
	}
	if len(dev) != 1 {
		t.Errorf("Expected 1 rule set for dev, got %d", len(dev))
	}
	if len(dev) == 1 && dev[0].Description != "Beta (dev)" {
		t.Errorf("Expected the dev copy of beta-access, got '%s'", dev[0].Description)
	}
}

func TestMemoryStore_SameKeyAcrossEnvs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.UpsertRuleSet(ctx, UpsertParams{Key: "rollout", Env: "prod", Sample: 10}); err != nil {
		t.Fatalf("UpsertRuleSet failed: %v", err)
	}
	if err := store.UpsertRuleSet(ctx, UpsertParams{Key: "rollout", Env: "dev", Sample: 100}); err != nil {
		t.Fatalf("UpsertRuleSet failed: %v", err)
	}

	prod, err := store.GetRuleSet(ctx, "rollout", "prod")
	if err != nil {
		t.Fatalf("GetRuleSet prod failed: %v", err)
	}
	dev, err := store.GetRuleSet(ctx, "rollout", "dev")
	if err != nil {
		t.Fatalf("GetRuleSet dev failed: %v", err)
	}
	if prod.Sample != 10 || dev.Sample != 100 {
		t.Errorf("Environments should not share state: prod=%d dev=%d", prod.Sample, dev.Sample)
	}
}

func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	params := UpsertParams{
		Key:         "update-test",
		Description: "Original description",
		Enabled:     false,
		Sample:      0,
		Env:         "prod",
	}

	if err := store.UpsertRuleSet(ctx, params); err != nil {
		t.Fatalf("Initial UpsertRuleSet failed: %v", err)
	}

	params.Description = "Updated description"
	params.Enabled = true
	params.Sample = 100

	if err := store.UpsertRuleSet(ctx, params); err != nil {
		t.Fatalf("Update UpsertRuleSet failed: %v", err)
	}

	rs, err := store.GetRuleSet(ctx, "update-test", "prod")
	if err != nil {
		t.Fatalf("GetRuleSet failed: %v", err)
	}

	if rs.Description != "Updated description" {
		t.Errorf("Expected description 'Updated description', got '%s'", rs.Description)
	}
	if !rs.Enabled {
		t.Errorf("Expected Enabled to be true, got false")
	}
	if rs.Sample != 100 {
		t.Errorf("Expected Sample to be 100, got %d", rs.Sample)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	params := UpsertParams{
		Key:         "delete-test",
		Description: "To be deleted",
		Enabled:     true,
		Sample:      50,
		Env:         "prod",
	}

	if err := store.UpsertRuleSet(ctx, params); err != nil {
		t.Fatalf("UpsertRuleSet failed: %v", err)
	}

	if err := store.DeleteRuleSet(ctx, "delete-test", "prod"); err != nil {
		t.Fatalf("DeleteRuleSet failed: %v", err)
	}

	if _, err := store.GetRuleSet(ctx, "delete-test", "prod"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	// Second delete reports the miss.
	if err := store.DeleteRuleSet(ctx, "delete-test", "prod"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryStore_DeleteWrongEnv(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	params := UpsertParams{
		Key:         "env-test",
		Description: "Env test",
		Enabled:     true,
		Sample:      50,
		Env:         "prod",
	}

	if err := store.UpsertRuleSet(ctx, params); err != nil {
		t.Fatalf("UpsertRuleSet failed: %v", err)
	}

	if err := store.DeleteRuleSet(ctx, "env-test", "dev"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting from wrong env, got %v", err)
	}

	rs, err := store.GetRuleSet(ctx, "env-test", "prod")
	if err != nil {
		t.Fatalf("GetRuleSet failed: %v", err)
	}
	if rs.Env != "prod" {
		t.Errorf("Expected env 'prod', got '%s'", rs.Env)
	}
}

func TestMemoryStore_GetNonExistent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetRuleSet(ctx, "non-existent", "prod")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_HealthCheckAndClose(t *testing.T) {
	store := NewMemoryStore()

	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() returned error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
}
