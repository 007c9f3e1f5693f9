package game

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

// TestRandomSequenceKeepsInvariants replays seeded streams of mixed actions
// across a small population and checks every stored profile after each step.
func TestRandomSequenceKeepsInvariants(t *testing.T) {
	users := []string{"ann", "ben", "cat", "dan", "eve"}

	for _, seed := range []int64{1, 7, 42, 2026} {
		h := newHarness(t, WithRoller(NewRoller(seed)))
		ctx := context.Background()
		pick := rand.New(rand.NewSource(seed))
		for i, id := range users {
			h.seed(t, Profile{UserID: id, Balance: int64(500 * (i + 1)), Premium: i%2 == 0})
		}

		other := func(self string) string {
			for {
				if id := users[pick.Intn(len(users))]; id != self {
					return id
				}
			}
		}
		amount := func() int64 { return int64(pick.Intn(3_000)) - 100 }

		ranks := map[string]int{}
		for _, id := range users {
			ranks[id] = JobHomeless.Rank()
		}

		for step := 0; step < 400; step++ {
			actor := users[pick.Intn(len(users))]
			in := ActionInput{UserID: actor}
			var (
				out Outcome
				err error
				op  string
			)
			switch pick.Intn(10) {
			case 0:
				op = "work"
				out, err = h.svc.Work(ctx, in)
			case 1:
				op = "crime"
				out, err = h.svc.Crime(ctx, in)
			case 2:
				op = "gift"
				in.TargetID, in.Amount = other(actor), amount()
				out, err = h.svc.Gift(ctx, in)
			case 3:
				op = "rob"
				in.TargetID = other(actor)
				out, err = h.svc.Rob(ctx, in)
			case 4:
				op = "loan"
				in.TargetID, in.Amount, in.Days = other(actor), amount(), 1+pick.Intn(3)
				out, err = h.svc.Loan(ctx, in)
			case 5:
				op = "repay"
				out, err = h.svc.Repay(ctx, in)
			case 6:
				op = "deposit"
				in.Amount = amount()
				out, err = h.svc.VaultDeposit(ctx, in)
			case 7:
				op = "withdraw"
				in.Amount = amount()
				out, err = h.svc.VaultWithdraw(ctx, in)
			case 8:
				op = "gamble"
				in.Amount = amount()
				out, err = h.svc.Gamble(ctx, in)
			default:
				op = "heist"
				in.Crew = []string{other(actor), other(actor)}
				out, err = h.svc.Heist(ctx, in)
			}
			if err != nil {
				t.Fatalf("seed %d step %d %s by %s: %v", seed, step, op, actor, err)
			}
			if out.Profile.Balance < 0 || out.Profile.VaultBalance < 0 {
				t.Fatalf("seed %d step %d %s returned balance %d vault %d", seed, step, op, out.Profile.Balance, out.Profile.VaultBalance)
			}

			for _, id := range users {
				p := h.stored(t, id)
				if p.Balance < 0 || p.VaultBalance < 0 {
					t.Fatalf("seed %d step %d %s: %s balance %d vault %d", seed, step, op, id, p.Balance, p.VaultBalance)
				}
				r := p.Job.Rank()
				if r < ranks[id] {
					t.Fatalf("seed %d step %d %s: %s demoted from rank %d to %s", seed, step, op, id, ranks[id], p.Job)
				}
				ranks[id] = r
			}

			h.clock.Advance(time.Duration(pick.Intn(20)) * time.Minute)
		}
	}
}
