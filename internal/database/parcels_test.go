package database

import (
	"testing"

	"swiftparcel-backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestRecordScanRequiresBarcode(t *testing.T) {
	_, err := RecordScan(nil, "p1", "Partner One", models.ScanRequest{Barcode: "   "})
	assert.True(t, models.IsValidation(err))
}

func TestRecordScanSuccess(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO parcels").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO tracking_events").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	parcel, err := RecordScan(db, "p1", "Partner One", models.ScanRequest{Barcode: " BC-100 ", Description: "box"})
	require.NoError(t, err)
	assert.Equal(t, "BC-100", parcel.Barcode)
	assert.Equal(t, models.ParcelScanned, parcel.Status)
	assert.Equal(t, "p1", parcel.ScannedByID)
	assert.NotEmpty(t, parcel.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordScanDuplicateBarcode(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	// ON CONFLICT DO NOTHING swallowed the insert
	mock.ExpectExec("INSERT INTO parcels").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM parcels WHERE barcode`).
		WithArgs("BC-100").
		WillReturnRows(sqlmock.NewRows([]string{"id", "barcode", "status", "scanned_by_id", "scanned_by_name"}).
			AddRow("orig-id", "BC-100", "scanned", "p0", "First Partner"))
	mock.ExpectRollback()

	_, err := RecordScan(db, "p1", "Partner One", models.ScanRequest{Barcode: "BC-100"})

	conflict, ok := models.AsConflict(err)
	require.True(t, ok, "expected a conflict error, got %v", err)

	existing, ok := conflict.Existing.(models.Parcel)
	require.True(t, ok)
	assert.Equal(t, "orig-id", existing.ID)
	assert.Equal(t, "p0", existing.ScannedByID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitAssignmentWinner(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	// the CAS must guard both the unassigned check and the status window
	mock.ExpectExec(`(?s)UPDATE parcels.*assigned_driver_id IS NULL.*status IN \('scanned', 'in_warehouse', 'dispatched'\)`).
		WithArgs("drv-1", "Driver One", models.ParcelDispatched, sqlmock.AnyArg(), "parcel-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO tracking_events").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM parcels WHERE id`).
		WithArgs("parcel-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "barcode", "status", "assigned_driver_id", "assigned_driver_name"}).
			AddRow("parcel-1", "BC-100", "dispatched", "drv-1", "Driver One"))

	parcel, err := CommitAssignment(db, "parcel-1", "drv-1", "Driver One")
	require.NoError(t, err)
	assert.Equal(t, models.ParcelDispatched, parcel.Status)
	require.NotNil(t, parcel.AssignedDriverID)
	assert.Equal(t, "drv-1", *parcel.AssignedDriverID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitAssignmentLoser(t *testing.T) {
	db, mock := newMockDB(t)

	// the null-guard matched no rows: someone else won the race
	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE parcels.*assigned_driver_id IS NULL.*status IN`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM parcels WHERE id`).
		WithArgs("parcel-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "barcode", "status", "assigned_driver_id", "assigned_driver_name"}).
			AddRow("parcel-1", "BC-100", "dispatched", "drv-2", "Driver Two"))
	mock.ExpectRollback()

	_, err := CommitAssignment(db, "parcel-1", "drv-1", "Driver One")

	conflict, ok := models.AsConflict(err)
	require.True(t, ok, "expected a conflict error, got %v", err)

	current, ok := conflict.Existing.(models.Parcel)
	require.True(t, ok)
	require.NotNil(t, current.AssignedDriverID)
	assert.Equal(t, "drv-2", *current.AssignedDriverID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitAssignmentSkipsProgressedParcel(t *testing.T) {
	db, mock := newMockDB(t)

	// the parcel progressed past the assignable window while unassigned, so
	// the status predicate matched no rows and its status stays untouched
	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE parcels.*assigned_driver_id IS NULL.*status IN \('scanned', 'in_warehouse', 'dispatched'\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM parcels WHERE id`).
		WithArgs("parcel-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "barcode", "status"}).
			AddRow("parcel-1", "BC-100", "delivered"))
	mock.ExpectRollback()

	_, err := CommitAssignment(db, "parcel-1", "drv-1", "Driver One")

	conflict, ok := models.AsConflict(err)
	require.True(t, ok, "expected a conflict error, got %v", err)
	assert.Contains(t, conflict.Message, "cannot be assigned")

	current, ok := conflict.Existing.(models.Parcel)
	require.True(t, ok)
	assert.Equal(t, models.ParcelDelivered, current.Status)
	assert.Nil(t, current.AssignedDriverID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchUnassignedSkipsProgressedParcel(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE parcels.*assigned_driver_id IS NULL.*status IN \('scanned', 'in_warehouse', 'dispatched'\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM parcels WHERE id`).
		WithArgs("parcel-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "barcode", "status"}).
			AddRow("parcel-1", "BC-100", "returned"))
	mock.ExpectRollback()

	_, err := DispatchUnassigned(db, "parcel-1")

	conflict, ok := models.AsConflict(err)
	require.True(t, ok, "expected a conflict error, got %v", err)
	assert.Contains(t, conflict.Message, "cannot be assigned")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateParcelStatusRejectsUnknownStatus(t *testing.T) {
	_, _, err := UpdateParcelStatus(nil, "parcel-1", models.ParcelStatus("teleported"), nil)
	assert.True(t, models.IsValidation(err))
}

func TestUpdateParcelStatusDeliveredRequiresRecipient(t *testing.T) {
	_, _, err := UpdateParcelStatus(nil, "parcel-1", models.ParcelDelivered, nil)
	assert.True(t, models.IsValidation(err))

	_, _, err = UpdateParcelStatus(nil, "parcel-1", models.ParcelDelivered, &models.DeliveryDetails{DeliveredTo: "  "})
	assert.True(t, models.IsValidation(err))
}

func TestUpdateParcelStatusIllegalTransition(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM parcels WHERE id = \$1 FOR UPDATE`).
		WithArgs("parcel-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "barcode", "status"}).
			AddRow("parcel-1", "BC-100", "delivered"))
	mock.ExpectRollback()

	_, _, err := UpdateParcelStatus(db, "parcel-1", models.ParcelInTransit, nil)
	assert.True(t, models.IsConflict(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateParcelStatusNotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM parcels WHERE id = \$1 FOR UPDATE`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, _, err := UpdateParcelStatus(db, "ghost", models.ParcelInTransit, nil)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAssignable(t *testing.T) {
	db, mock := newMockDB(t)

	// already assigned
	mock.ExpectQuery(`SELECT \* FROM parcels WHERE id`).
		WithArgs("parcel-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "assigned_driver_id"}).
			AddRow("parcel-1", "dispatched", "drv-1"))
	assert.True(t, models.IsConflict(CheckAssignable(db, "parcel-1")))

	// terminal status
	mock.ExpectQuery(`SELECT \* FROM parcels WHERE id`).
		WithArgs("parcel-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).
			AddRow("parcel-2", "delivered"))
	assert.True(t, models.IsConflict(CheckAssignable(db, "parcel-2")))

	// still assignable
	mock.ExpectQuery(`SELECT \* FROM parcels WHERE id`).
		WithArgs("parcel-3").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).
			AddRow("parcel-3", "in_warehouse"))
	assert.NoError(t, CheckAssignable(db, "parcel-3"))

	assert.NoError(t, mock.ExpectationsWereMet())
}
