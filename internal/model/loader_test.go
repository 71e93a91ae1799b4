package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"GridCast/internal/domain/models"
)

func writeModelFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}
	return path
}

func TestLoadRegistryCompleteGrid(t *testing.T) {
	path := writeModelFile(t, `{"models": [
        {"product": "DALMP", "hour": 1, "version": "v1", "intercept": 5, "coefficients": {"load_mw": 0.001}, "residual_sigma": 3},
        {"product": "DALMP", "hour": 2, "version": "v1", "intercept": 5, "coefficients": {"load_mw": 0.001}, "residual_sigma": 3}
    ]}`)

	reg, err := LoadRegistry(path, []models.Product{models.ProductDALMP}, 2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if reg.Size() != 2 {
		t.Fatalf("size = %d, want 2", reg.Size())
	}
}

func TestLoadRegistryMissingUnitAbortsStartup(t *testing.T) {
	path := writeModelFile(t, `{"models": [
        {"product": "DALMP", "hour": 1, "version": "v1", "intercept": 5, "coefficients": {}, "residual_sigma": 3}
    ]}`)

	_, err := LoadRegistry(path, []models.Product{models.ProductDALMP}, 2)
	var nf *models.ModelNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected ModelNotFoundError, got %v", err)
	}
	if nf.Unit.Hour != 2 {
		t.Fatalf("unexpected missing unit %v", nf.Unit)
	}
}

func TestLoadRegistryRejectsDuplicates(t *testing.T) {
	path := writeModelFile(t, `{"models": [
        {"product": "DALMP", "hour": 1, "version": "v1", "intercept": 5, "coefficients": {}, "residual_sigma": 3},
        {"product": "DALMP", "hour": 1, "version": "v2", "intercept": 6, "coefficients": {}, "residual_sigma": 3}
    ]}`)

	if _, err := LoadRegistry(path, []models.Product{models.ProductDALMP}, 1); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestLoadRegistryBadFile(t *testing.T) {
	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.json"), nil, 0); err == nil {
		t.Fatalf("expected error for missing file")
	}
	path := writeModelFile(t, `{not json`)
	if _, err := LoadRegistry(path, nil, 0); err == nil {
		t.Fatalf("expected error for malformed file")
	}
}

func TestLoadRegistryShippedModelFile(t *testing.T) {
	path := filepath.Join("..", "..", "config", "models.json")
	reg, err := LoadRegistry(path, models.AllProducts(), 72)
	if err != nil {
		t.Fatalf("load shipped model file: %v", err)
	}
	if want := len(models.AllProducts()) * 72; reg.Size() != want {
		t.Fatalf("size = %d, want %d", reg.Size(), want)
	}
}
