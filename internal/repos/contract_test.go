package repos_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gigfolio/gigfolio-backend/internal/repos"
	"github.com/gigfolio/gigfolio-backend/internal/repos/testutil"
	"github.com/gigfolio/gigfolio-backend/internal/types"
)

func TestCompareAndSetStatusGuardsOnCurrentRow(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := repos.NewContractRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, db)
	contract := testutil.SeedContract(t, ctx, db, user.ID, types.ContractStatusDraft)
	testutil.CleanupContract(t, db, contract.ID)

	won, err := repo.CompareAndSetStatus(ctx, nil, contract.ID, types.ContractStatusDraft, types.ContractStatusSent, nil)
	if err != nil {
		t.Fatalf("CompareAndSetStatus: %v", err)
	}
	if !won {
		t.Fatalf("expected transition draft->sent to win")
	}

	// Second attempt with the same expectation must lose: the row is no
	// longer draft.
	won, err = repo.CompareAndSetStatus(ctx, nil, contract.ID, types.ContractStatusDraft, types.ContractStatusSent, nil)
	if err != nil {
		t.Fatalf("CompareAndSetStatus: %v", err)
	}
	if won {
		t.Fatalf("expected stale expectation to lose")
	}
}

func TestTrySignAtMostOnceUnderConcurrency(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := repos.NewContractRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, db)
	contract := testutil.SeedContract(t, ctx, db, user.ID, types.ContractStatusSent)
	testutil.CleanupContract(t, db, contract.ID)

	const n = 8
	names := []string{"Alice", "Bob", "Carol", "Dave", "Erin", "Frank", "Grace", "Heidi"}

	var wg sync.WaitGroup
	results := make([]*repos.SignResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.TrySign(ctx, contract.ID, repos.SignWrite{
				SignatureName:   names[i],
				SignedAt:        time.Now(),
				ClientIPAddress: "203.0.113.7",
			})
		}(i)
	}
	wg.Wait()

	var signedCount, alreadyCount int
	var winner string
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("TrySign[%d]: %v", i, errs[i])
		}
		switch results[i].Outcome {
		case repos.SignOutcomeSigned:
			signedCount++
			winner = results[i].Contract.SignatureName
		case repos.SignOutcomeAlreadySigned:
			alreadyCount++
		default:
			t.Fatalf("TrySign[%d]: unexpected outcome %q", i, results[i].Outcome)
		}
	}
	if signedCount != 1 {
		t.Fatalf("signed count: want=1 got=%d", signedCount)
	}
	if alreadyCount != n-1 {
		t.Fatalf("already-signed count: want=%d got=%d", n-1, alreadyCount)
	}

	// Every loser must report the winner's facts.
	for i := 0; i < n; i++ {
		if got := results[i].Contract.SignatureName; got != winner {
			t.Fatalf("result[%d] signature: want=%q got=%q", i, winner, got)
		}
	}
}

func TestTrySignOutcomes(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := repos.NewContractRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, db)

	res, err := repo.TrySign(ctx, 999999999, repos.SignWrite{SignatureName: "Nobody", SignedAt: time.Now()})
	if err != nil {
		t.Fatalf("TrySign missing: %v", err)
	}
	if res.Outcome != repos.SignOutcomeNotFound {
		t.Fatalf("missing contract outcome: want=%q got=%q", repos.SignOutcomeNotFound, res.Outcome)
	}

	draft := testutil.SeedContract(t, ctx, db, user.ID, types.ContractStatusDraft)
	testutil.CleanupContract(t, db, draft.ID)
	res, err = repo.TrySign(ctx, draft.ID, repos.SignWrite{SignatureName: "Early Bird", SignedAt: time.Now()})
	if err != nil {
		t.Fatalf("TrySign draft: %v", err)
	}
	if res.Outcome != repos.SignOutcomeInvalidState {
		t.Fatalf("draft contract outcome: want=%q got=%q", repos.SignOutcomeInvalidState, res.Outcome)
	}
}

func TestSignedFactsAreImmutable(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := repos.NewContractRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, db)
	contract := testutil.SeedContract(t, ctx, db, user.ID, types.ContractStatusSent)
	testutil.CleanupContract(t, db, contract.ID)

	first, err := repo.TrySign(ctx, contract.ID, repos.SignWrite{
		SignatureName: "Casey Client",
		SignedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("TrySign: %v", err)
	}
	if first.Outcome != repos.SignOutcomeSigned {
		t.Fatalf("first outcome: want=%q got=%q", repos.SignOutcomeSigned, first.Outcome)
	}
	if first.Contract.SignedAt == nil {
		t.Fatalf("signed contract must carry signed_at")
	}

	second, err := repo.TrySign(ctx, contract.ID, repos.SignWrite{
		SignatureName: "Impostor",
		SignedAt:      time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("TrySign second: %v", err)
	}
	if second.Outcome != repos.SignOutcomeAlreadySigned {
		t.Fatalf("second outcome: want=%q got=%q", repos.SignOutcomeAlreadySigned, second.Outcome)
	}
	if second.Contract.SignatureName != "Casey Client" {
		t.Fatalf("signature changed after terminal state: got=%q", second.Contract.SignatureName)
	}
	if !second.Contract.SignedAt.Equal(*first.Contract.SignedAt) {
		t.Fatalf("signed_at changed after terminal state")
	}

	// MarkSent must never touch a signed row.
	if err := repo.MarkSent(ctx, nil, contract.ID, nil); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	reloaded, err := repo.GetByID(ctx, nil, contract.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.Status != types.ContractStatusSigned {
		t.Fatalf("status after MarkSent on signed row: want=%q got=%q", types.ContractStatusSigned, reloaded.Status)
	}
}

func TestStatusSignedIffSignedAtSet(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := repos.NewContractRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, db)
	contract := testutil.SeedContract(t, ctx, db, user.ID, types.ContractStatusSent)
	testutil.CleanupContract(t, db, contract.ID)

	before, _ := repo.GetByID(ctx, nil, contract.ID)
	if before.SignedAt != nil {
		t.Fatalf("unsigned contract must not carry signed_at")
	}

	if _, err := repo.TrySign(ctx, contract.ID, repos.SignWrite{SignatureName: "Casey", SignedAt: time.Now()}); err != nil {
		t.Fatalf("TrySign: %v", err)
	}

	after, _ := repo.GetByID(ctx, nil, contract.ID)
	if after.Status != types.ContractStatusSigned || after.SignedAt == nil {
		t.Fatalf("signed iff signed_at violated: status=%q signed_at=%v", after.Status, after.SignedAt)
	}
}

func TestListStaleSigningPages(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := repos.NewContractRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, db)

	stale := testutil.SeedContract(t, ctx, db, user.ID, types.ContractStatusSent)
	testutil.CleanupContract(t, db, stale.ID)
	staleAt := time.Now().Add(-7 * 24 * time.Hour)
	if err := repo.UpdatePublication(ctx, nil, stale.ID, repos.PublicationMeta{
		CloudStorageKey:     "signing-pages/old/key.html",
		CloudStorageURL:     "https://example.com/old.html",
		SigningURLCreatedAt: staleAt,
	}); err != nil {
		t.Fatalf("UpdatePublication: %v", err)
	}

	fresh := testutil.SeedContract(t, ctx, db, user.ID, types.ContractStatusSent)
	testutil.CleanupContract(t, db, fresh.ID)
	if err := repo.UpdatePublication(ctx, nil, fresh.ID, repos.PublicationMeta{
		CloudStorageKey:     "signing-pages/new/key.html",
		CloudStorageURL:     "https://example.com/new.html",
		SigningURLCreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("UpdatePublication: %v", err)
	}

	unpublished := testutil.SeedContract(t, ctx, db, user.ID, types.ContractStatusSent)
	testutil.CleanupContract(t, db, unpublished.ID)

	cutoff := time.Now().Add(-6 * 24 * time.Hour)
	matches, err := repo.ListStaleSigningPages(ctx, nil, cutoff)
	if err != nil {
		t.Fatalf("ListStaleSigningPages: %v", err)
	}

	found := map[uint]bool{}
	for _, m := range matches {
		found[m.ID] = true
	}
	if !found[stale.ID] {
		t.Fatalf("stale contract %d not selected", stale.ID)
	}
	if found[fresh.ID] {
		t.Fatalf("fresh contract %d must not be selected", fresh.ID)
	}
	if found[unpublished.ID] {
		t.Fatalf("contract %d without a published page must not be selected", unpublished.ID)
	}
}
