package syncengine

import (
	"errors"
	"testing"

	mssql "github.com/microsoft/go-mssqldb"
)

func TestClassifyBulkLoadError_SchemaChangeCodes(t *testing.T) {
	for _, num := range []int32{213, 4891} {
		err := classifyBulkLoadError(mssql.Error{Number: num, Message: "boom"})
		var schemaChange *ErrSchemaChange
		if !errors.As(err, &schemaChange) {
			t.Errorf("error number %d: expected ErrSchemaChange, got %v (%T)", num, err, err)
		}
	}
}

func TestClassifyBulkLoadError_SchemaChangeMessage(t *testing.T) {
	err := classifyBulkLoadError(errors.New("underlying: SCHEMA CHANGE detected mid-copy"))
	var schemaChange *ErrSchemaChange
	if !errors.As(err, &schemaChange) {
		t.Errorf("expected ErrSchemaChange from message match, got %v (%T)", err, err)
	}
}

func TestClassifyBulkLoadError_NullConstraintPassesThroughAsError(t *testing.T) {
	err := classifyBulkLoadError(mssql.Error{Number: 515, Message: "cannot insert null"})
	var schemaChange *ErrSchemaChange
	if errors.As(err, &schemaChange) {
		t.Errorf("515 should not classify as schema change, got %v", err)
	}
	if err == nil {
		t.Fatal("expected a non-nil error")
	}
}

func TestClassifyBulkLoadError_OtherErrorsPassThroughUnchanged(t *testing.T) {
	original := errors.New("connection reset by peer")
	got := classifyBulkLoadError(original)
	if got != original {
		t.Errorf("expected unrelated errors to pass through unchanged, got %v", got)
	}
}
