package audience

import (
	"context"
	"errors"
	"testing"

	"mailblast/internal/types"
)

// mockStore implements SubscriberSource for testing.
type mockStore struct {
	active    []types.Subscriber
	activeErr error

	tokens    map[string]string
	tokensErr error

	listCalled   bool
	tokensCalled bool
	tokensInput  []string
}

func (m *mockStore) ListActive(_ context.Context) ([]types.Subscriber, error) {
	m.listCalled = true
	if m.activeErr != nil {
		return nil, m.activeErr
	}
	return m.active, nil
}

func (m *mockStore) TokensByEmails(_ context.Context, emails []string) (map[string]string, error) {
	m.tokensCalled = true
	m.tokensInput = emails
	if m.tokensErr != nil {
		return nil, m.tokensErr
	}
	if m.tokens == nil {
		return map[string]string{}, nil
	}
	return m.tokens, nil
}

func assertValidationCode(t *testing.T, err error, want types.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != want {
		t.Errorf("expected code %s, got %s", want, appErr.Code)
	}
}

func TestResolve_SplitsTrimsAndDedupes(t *testing.T) {
	store := &mockStore{}
	r := NewResolver(store, nil)

	got, err := r.Resolve(context.Background(), Request{
		Recipients: "a@x.com, A@X.com ; b@y.com",
		Mode:       types.ModeSend,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 recipients, got %d", len(got))
	}
	if got[0].Email != "a@x.com" || got[1].Email != "b@y.com" {
		t.Errorf("expected [a@x.com b@y.com], got [%s %s]", got[0].Email, got[1].Email)
	}
}

func TestResolve_SortedOrderIsDeterministic(t *testing.T) {
	store := &mockStore{}
	r := NewResolver(store, nil)

	got, err := r.Resolve(context.Background(), Request{
		Recipients: "zeta@x.com; alpha@x.com, mid@x.com",
		Mode:       types.ModeSend,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	want := []string{"alpha@x.com", "mid@x.com", "zeta@x.com"}
	for i, w := range want {
		if got[i].Email != w {
			t.Errorf("position %d: expected %s, got %s", i, w, got[i].Email)
		}
	}
}

func TestResolve_UnionsActiveAudience(t *testing.T) {
	store := &mockStore{
		active: []types.Subscriber{
			{Email: "sub1@x.com", Token: "tok_1", Status: types.SubscriberActive},
			{Email: "sub2@x.com", Token: "tok_2", Status: types.SubscriberActive},
		},
		tokens: map[string]string{
			"sub1@x.com": "tok_1",
			"sub2@x.com": "tok_2",
		},
	}
	r := NewResolver(store, nil)

	got, err := r.Resolve(context.Background(), Request{
		Recipients:  "manual@y.com, sub1@x.com",
		UseAudience: true,
		Mode:        types.ModeSend,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	// manual@y.com + sub1 (overlap collapsed) + sub2 = 3.
	if len(got) != 3 {
		t.Fatalf("expected 3 recipients, got %d", len(got))
	}
	if !store.listCalled {
		t.Error("expected ListActive to be consulted")
	}
}

func TestResolve_KnownSubscriberReusesStoredToken(t *testing.T) {
	store := &mockStore{
		tokens: map[string]string{"bob@x.com": "tok_bob_stored"},
	}
	r := NewResolver(store, nil)

	got, err := r.Resolve(context.Background(), Request{
		Recipients: "bob@x.com",
		Mode:       types.ModeSend,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 recipient, got %d", len(got))
	}
	if got[0].Token != "tok_bob_stored" {
		t.Errorf("expected stored token, got %q", got[0].Token)
	}
}

func TestResolve_UnknownAddressGetsFreshToken(t *testing.T) {
	store := &mockStore{}
	r := NewResolver(store, nil)

	got, err := r.Resolve(context.Background(), Request{
		Recipients: "stranger@y.com",
		Mode:       types.ModeSend,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 recipient, got %d", len(got))
	}
	if got[0].Token == "" {
		t.Error("expected a fresh token for an unknown address, got empty")
	}

	// The same address resolved again gets a different single-use token.
	again, err := r.Resolve(context.Background(), Request{
		Recipients: "stranger@y.com",
		Mode:       types.ModeSend,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if again[0].Token == got[0].Token {
		t.Error("expected fresh tokens to differ between resolutions")
	}
}

func TestResolve_TestModeOverridesEverything(t *testing.T) {
	store := &mockStore{
		active: []types.Subscriber{
			{Email: "sub1@x.com", Token: "tok_1", Status: types.SubscriberActive},
		},
	}
	r := NewResolver(store, nil)

	got, err := r.Resolve(context.Background(), Request{
		Recipients:  "a@x.com, b@y.com",
		UseAudience: true,
		Mode:        types.ModeTest,
		TestEmail:   " QA@Example.COM ",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected exactly 1 recipient in test mode, got %d", len(got))
	}
	if got[0].Email != "qa@example.com" {
		t.Errorf("expected qa@example.com, got %s", got[0].Email)
	}
	if store.listCalled {
		t.Error("test mode must not consult the stored audience")
	}
}

func TestResolve_TestModeRequiresAddress(t *testing.T) {
	store := &mockStore{}
	r := NewResolver(store, nil)

	_, err := r.Resolve(context.Background(), Request{
		Recipients: "a@x.com",
		Mode:       types.ModeTest,
		TestEmail:  "   ",
	})
	assertValidationCode(t, err, types.ErrCodeValidationTestAddress)
}

func TestResolve_EmptySetIsValidationError(t *testing.T) {
	store := &mockStore{}
	r := NewResolver(store, nil)

	_, err := r.Resolve(context.Background(), Request{
		Recipients:  " , ; ",
		UseAudience: false,
		Mode:        types.ModeSend,
	})
	assertValidationCode(t, err, types.ErrCodeValidationNoRecipients)
}

func TestResolve_EmptyAudienceIsValidationError(t *testing.T) {
	store := &mockStore{active: []types.Subscriber{}}
	r := NewResolver(store, nil)

	_, err := r.Resolve(context.Background(), Request{
		Recipients:  "",
		UseAudience: true,
		Mode:        types.ModeSend,
	})
	assertValidationCode(t, err, types.ErrCodeValidationNoRecipients)
}

func TestResolve_StorageErrorPropagates(t *testing.T) {
	storeErr := types.NewAppError(types.ErrCodeStorageQuery, "subscriber query failed", errors.New("down"))
	store := &mockStore{activeErr: storeErr}
	r := NewResolver(store, nil)

	_, err := r.Resolve(context.Background(), Request{
		UseAudience: true,
		Mode:        types.ModeSend,
	})
	if !errors.Is(err, storeErr) {
		t.Errorf("expected the storage error to pass through, got: %v", err)
	}
}

func TestResolve_TokenLookupUsesSortedEmails(t *testing.T) {
	store := &mockStore{}
	r := NewResolver(store, nil)

	_, err := r.Resolve(context.Background(), Request{
		Recipients: "c@x.com, a@x.com, b@x.com",
		Mode:       types.ModeSend,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !store.tokensCalled {
		t.Fatal("expected TokensByEmails to be called")
	}

	want := []string{"a@x.com", "b@x.com", "c@x.com"}
	if len(store.tokensInput) != len(want) {
		t.Fatalf("expected %d emails, got %d", len(want), len(store.tokensInput))
	}
	for i, w := range want {
		if store.tokensInput[i] != w {
			t.Errorf("position %d: expected %s, got %s", i, w, store.tokensInput[i])
		}
	}
}
