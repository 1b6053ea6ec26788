package service

import (
	"context"
	"testing"
	"time"

	"expensetracker/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestServiceFixture struct {
	users    *fakeUserRepo
	requests *fakeRequestRepo
	audits   *fakeAuditRepo
	svc      RequestService
}

func newRequestServiceFixture() *requestServiceFixture {
	users := newFakeUserRepo()
	requests := newFakeRequestRepo()
	audits := &fakeAuditRepo{}
	return &requestServiceFixture{
		users:    users,
		requests: requests,
		audits:   audits,
		svc:      NewRequestService(requests, users, audits, passthroughTx{}),
	}
}

func TestCreateRequest_AmountDerivedFromItems(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)

	resp, err := fx.svc.Create(context.Background(), identityFor(owner), CreateRequestDTO{
		RequestType: model.RequestTypePurchase,
		Title:       "Office supplies",
		Category:    "office",
		Amount:      999, // ignored because items are present
		Items: []RequestItemDTO{
			{Description: "Pens", Quantity: 10, UnitPrice: 1.5},
			{Description: "", Quantity: 3, UnitPrice: 100}, // dropped: empty description
			{Description: "Notebook", UnitPrice: 4.25},     // quantity defaults to 1
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "19.25", resp.Amount)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "Pens", resp.Items[0].Description)
	assert.Equal(t, 10, resp.Items[0].Quantity)
	assert.Equal(t, "Notebook", resp.Items[1].Description)
	assert.Equal(t, 1, resp.Items[1].Quantity)
}

func TestCreateRequest_DefaultsAndSnapshot(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)

	resp, err := fx.svc.Create(context.Background(), identityFor(owner), CreateRequestDTO{
		RequestType: model.RequestTypeExpense,
		Title:       "Taxi to airport",
		Category:    "travel",
		Amount:      42.5,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, resp.Status)
	assert.Equal(t, model.PriorityMedium, resp.Priority)
	assert.Equal(t, "USD", resp.Currency)
	assert.Equal(t, "42.50", resp.Amount)
	assert.Equal(t, "Alice Nguyen", resp.EmployeeName)
	assert.Equal(t, "alice@example.com", resp.EmployeeEmail)
	assert.Equal(t, "Engineering", resp.Department)

	assert.Equal(t, []string{model.ActionCreateRequest}, fx.audits.actions())
}

func TestCreateRequest_UnknownOwner(t *testing.T) {
	fx := newRequestServiceFixture()
	ghost := model.Identity{UserID: "0e1f8cde-9d55-4f7c-9d8a-111111111111", Role: model.RoleEmployee}

	_, err := fx.svc.Create(context.Background(), ghost, CreateRequestDTO{
		RequestType: model.RequestTypeExpense,
		Title:       "Lunch",
		Category:    "meals",
	})
	assert.ErrorIs(t, err, ErrOwnerNotFound)
}

func TestCreateRequest_NegativeAmount(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)

	_, err := fx.svc.Create(context.Background(), identityFor(owner), CreateRequestDTO{
		RequestType: model.RequestTypeExpense,
		Title:       "Refund",
		Category:    "misc",
		Amount:      -5,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetRequest_OwnerAndAdminAccess(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)
	other := seedUser(t, fx.users, "Bob Tran", "bob@example.com", "Sales", model.RoleEmployee)
	admin := seedUser(t, fx.users, "Carol Pham", "carol@example.com", "Finance", model.RoleAdmin)

	created, err := fx.svc.Create(context.Background(), identityFor(owner), CreateRequestDTO{
		RequestType: model.RequestTypeExpense,
		Title:       "Conference ticket",
		Category:    "training",
		Amount:      300,
	})
	require.NoError(t, err)

	_, err = fx.svc.Get(context.Background(), identityFor(owner), created.ID)
	assert.NoError(t, err)

	_, err = fx.svc.Get(context.Background(), identityFor(admin), created.ID)
	assert.NoError(t, err)

	_, err = fx.svc.Get(context.Background(), identityFor(other), created.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGetRequest_InvalidAndMissingID(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)

	_, err := fx.svc.Get(context.Background(), identityFor(owner), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fx.svc.Get(context.Background(), identityFor(owner), "0e1f8cde-9d55-4f7c-9d8a-222222222222")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListForOwner_FiltersByTypeAndOwner(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)
	other := seedUser(t, fx.users, "Bob Tran", "bob@example.com", "Sales", model.RoleEmployee)

	mustCreate := func(identity model.Identity, reqType, title string) {
		_, err := fx.svc.Create(context.Background(), identity, CreateRequestDTO{
			RequestType: reqType, Title: title, Category: "misc", Amount: 10,
		})
		require.NoError(t, err)
	}
	mustCreate(identityFor(owner), model.RequestTypeExpense, "Expense A")
	mustCreate(identityFor(owner), model.RequestTypePurchase, "Purchase B")
	mustCreate(identityFor(other), model.RequestTypeExpense, "Someone else")

	all, err := fx.svc.ListForOwner(context.Background(), identityFor(owner), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	expenses, err := fx.svc.ListForOwner(context.Background(), identityFor(owner), model.RequestTypeExpense)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, "Expense A", expenses[0].Title)
}

func TestListForOwner_NewestFirst(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)

	// Seed with explicit request dates, deliberately out of insertion order
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, r := range []struct {
		title string
		date  time.Time
	}{
		{"Middle", base.AddDate(0, 0, 5)},
		{"Oldest", base},
		{"Newest", base.AddDate(0, 1, 0)},
	} {
		req := model.Request{
			EmployeeID:    owner.ID,
			EmployeeName:  owner.Name,
			EmployeeEmail: owner.Email,
			Department:    owner.Department,
			RequestType:   model.RequestTypeExpense,
			Title:         r.title,
			Category:      "misc",
			Status:        model.StatusPending,
			RequestDate:   r.date,
		}
		require.NoError(t, fx.requests.Create(context.Background(), &req))
	}

	requests, err := fx.svc.ListForOwner(context.Background(), identityFor(owner), "")
	require.NoError(t, err)
	require.Len(t, requests, 3)
	assert.Equal(t, "Newest", requests[0].Title)
	assert.Equal(t, "Middle", requests[1].Title)
	assert.Equal(t, "Oldest", requests[2].Title)
}

func TestUpdateRequest_PartialPatch(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)

	created, err := fx.svc.Create(context.Background(), identityFor(owner), CreateRequestDTO{
		RequestType: model.RequestTypeExpense,
		Title:       "Original title",
		Description: "Original description",
		Category:    "misc",
		Amount:      50,
	})
	require.NoError(t, err)

	newTitle := "Updated title"
	emptyDescription := ""
	updated, err := fx.svc.Update(context.Background(), identityFor(owner), created.ID, UpdateRequestDTO{
		Title:       &newTitle,
		Description: &emptyDescription, // explicit zero value is applied
	})
	require.NoError(t, err)

	assert.Equal(t, "Updated title", updated.Title)
	assert.Equal(t, "", updated.Description)
	assert.Equal(t, "50.00", updated.Amount) // untouched fields survive
	assert.Equal(t, "misc", updated.Category)
}

func TestUpdateRequest_ItemsPatchRecomputesAmount(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)

	created, err := fx.svc.Create(context.Background(), identityFor(owner), CreateRequestDTO{
		RequestType: model.RequestTypePurchase,
		Title:       "Hardware",
		Category:    "equipment",
		Items:       []RequestItemDTO{{Description: "Mouse", Quantity: 2, UnitPrice: 20}},
	})
	require.NoError(t, err)
	require.Equal(t, "40.00", created.Amount)

	newItems := []RequestItemDTO{
		{Description: "Keyboard", Quantity: 1, UnitPrice: 75},
		{Description: "Monitor", Quantity: 2, UnitPrice: 150},
	}
	updated, err := fx.svc.Update(context.Background(), identityFor(owner), created.ID, UpdateRequestDTO{
		Items: &newItems,
	})
	require.NoError(t, err)

	assert.Equal(t, "375.00", updated.Amount)
	require.Len(t, updated.Items, 2)
	assert.Equal(t, "Keyboard", updated.Items[0].Description)
}

func TestUpdateRequest_NegativeItemSumRejected(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)

	created, err := fx.svc.Create(context.Background(), identityFor(owner), CreateRequestDTO{
		RequestType: model.RequestTypePurchase,
		Title:       "Hardware",
		Category:    "equipment",
		Items:       []RequestItemDTO{{Description: "Mouse", Quantity: 2, UnitPrice: 20}},
	})
	require.NoError(t, err)

	badItems := []RequestItemDTO{{Description: "Refund line", Quantity: 1, UnitPrice: -50}}
	_, err = fx.svc.Update(context.Background(), identityFor(owner), created.ID, UpdateRequestDTO{
		Items: &badItems,
	})
	assert.ErrorIs(t, err, ErrValidation)

	// Record is untouched
	got, err := fx.svc.Get(context.Background(), identityFor(owner), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", got.Amount)
	require.Len(t, got.Items, 1)
}

func TestUpdateRequest_EmptyItemsPatchResetsAmount(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)

	created, err := fx.svc.Create(context.Background(), identityFor(owner), CreateRequestDTO{
		RequestType: model.RequestTypePurchase,
		Title:       "Hardware",
		Category:    "equipment",
		Items:       []RequestItemDTO{{Description: "Mouse", Quantity: 2, UnitPrice: 20}},
	})
	require.NoError(t, err)
	require.Equal(t, "40.00", created.Amount)

	// Clearing the items with no declared amount zeroes the total
	empty := []RequestItemDTO{}
	updated, err := fx.svc.Update(context.Background(), identityFor(owner), created.ID, UpdateRequestDTO{
		Items: &empty,
	})
	require.NoError(t, err)
	assert.Equal(t, "0.00", updated.Amount)
	assert.Len(t, updated.Items, 0)

	// Clearing the items alongside a declared amount keeps the declaration.
	// Items whose descriptions are all empty count as cleared too.
	declared := 12.5
	blankOnly := []RequestItemDTO{{Description: "", Quantity: 3, UnitPrice: 9}}
	updated, err = fx.svc.Update(context.Background(), identityFor(owner), created.ID, UpdateRequestDTO{
		Amount: &declared,
		Items:  &blankOnly,
	})
	require.NoError(t, err)
	assert.Equal(t, "12.50", updated.Amount)
	assert.Len(t, updated.Items, 0)
}

func TestUpdateRequest_Guards(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)
	other := seedUser(t, fx.users, "Bob Tran", "bob@example.com", "Sales", model.RoleEmployee)

	created, err := fx.svc.Create(context.Background(), identityFor(owner), CreateRequestDTO{
		RequestType: model.RequestTypeExpense,
		Title:       "Guarded",
		Category:    "misc",
		Amount:      10,
	})
	require.NoError(t, err)

	newTitle := "Hijacked"
	_, err = fx.svc.Update(context.Background(), identityFor(other), created.ID, UpdateRequestDTO{Title: &newTitle})
	assert.ErrorIs(t, err, ErrForbidden)

	// Approve the request out of band; owner updates must now fail
	stored, findErr := fx.requests.FindByID(context.Background(), uuid.MustParse(created.ID))
	require.NoError(t, findErr)
	stored.Status = model.StatusApproved
	require.NoError(t, fx.requests.Update(context.Background(), stored))

	_, err = fx.svc.Update(context.Background(), identityFor(owner), created.ID, UpdateRequestDTO{Title: &newTitle})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDeleteRequest_OwnerPendingOnly(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)
	other := seedUser(t, fx.users, "Bob Tran", "bob@example.com", "Sales", model.RoleEmployee)

	created, err := fx.svc.Create(context.Background(), identityFor(owner), CreateRequestDTO{
		RequestType: model.RequestTypeExpense,
		Title:       "Doomed",
		Category:    "misc",
		Amount:      10,
	})
	require.NoError(t, err)

	err = fx.svc.Delete(context.Background(), identityFor(other), created.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	err = fx.svc.Delete(context.Background(), identityFor(owner), created.ID)
	require.NoError(t, err)

	_, err = fx.svc.Get(context.Background(), identityFor(owner), created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRequest_RejectedIsImmutable(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)

	created, err := fx.svc.Create(context.Background(), identityFor(owner), CreateRequestDTO{
		RequestType: model.RequestTypeExpense,
		Title:       "Settled",
		Category:    "misc",
		Amount:      10,
	})
	require.NoError(t, err)

	stored, findErr := fx.requests.FindByID(context.Background(), uuid.MustParse(created.ID))
	require.NoError(t, findErr)
	stored.Status = model.StatusRejected
	require.NoError(t, fx.requests.Update(context.Background(), stored))

	err = fx.svc.Delete(context.Background(), identityFor(owner), created.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAttachFile_KindsAndGuards(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)
	other := seedUser(t, fx.users, "Bob Tran", "bob@example.com", "Sales", model.RoleEmployee)

	created, err := fx.svc.Create(context.Background(), identityFor(owner), CreateRequestDTO{
		RequestType: model.RequestTypeExpense,
		Title:       "With receipts",
		Category:    "misc",
		Amount:      10,
	})
	require.NoError(t, err)

	upload := AttachmentUpload{Filename: "abc.png", OriginalName: "receipt.png", Path: "uploads/abc.png"}

	resp, err := fx.svc.AttachFile(context.Background(), identityFor(owner), created.ID, AttachmentKindInvoice, upload)
	require.NoError(t, err)
	assert.Equal(t, "uploads/abc.png", resp.InvoiceImage)

	resp, err = fx.svc.AttachFile(context.Background(), identityFor(owner), created.ID, AttachmentKindGeneric, upload)
	require.NoError(t, err)
	require.Len(t, resp.Attachments, 1)
	assert.Equal(t, "receipt.png", resp.Attachments[0].OriginalName)

	_, err = fx.svc.AttachFile(context.Background(), identityFor(other), created.ID, AttachmentKindBill, upload)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = fx.svc.AttachFile(context.Background(), identityFor(owner), created.ID, "something-else", upload)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSnapshotNotResynced(t *testing.T) {
	fx := newRequestServiceFixture()
	owner := seedUser(t, fx.users, "Alice Nguyen", "alice@example.com", "Engineering", model.RoleEmployee)

	created, err := fx.svc.Create(context.Background(), identityFor(owner), CreateRequestDTO{
		RequestType: model.RequestTypeExpense,
		Title:       "Before rename",
		Category:    "misc",
		Amount:      10,
	})
	require.NoError(t, err)

	// Rename the user after the request was created
	renamed, getErr := fx.users.GetByID(context.Background(), owner.ID)
	require.NoError(t, getErr)
	renamed.Name = "Alice Pham"
	renamed.Department = "Platform"
	fx.users.users[owner.ID] = *renamed

	got, err := fx.svc.Get(context.Background(), identityFor(owner), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Nguyen", got.EmployeeName)
	assert.Equal(t, "Engineering", got.Department)

	// A new request picks up the fresh snapshot
	fresh, err := fx.svc.Create(context.Background(), identityFor(owner), CreateRequestDTO{
		RequestType: model.RequestTypeExpense,
		Title:       "After rename",
		Category:    "misc",
		Amount:      10,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Pham", fresh.EmployeeName)
	assert.Equal(t, "Platform", fresh.Department)
}

