package discord

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sahilm/fuzzy"
)

// keywordHints maps fragments people type to the commands they usually mean.
var keywordHints = []struct {
	key      string
	commands []string
}{
	{"prem", []string{"premium", "premiumdaily", "buypremium"}},
	{"money", []string{"addmoney", "setmoney", "work"}},
	{"help", []string{"start", "help"}},
	{"loan", []string{"deal", "repay", "loans"}},
	{"steal", []string{"rob", "crime", "heist"}},
	{"heist", []string{"heist", "premiumheist"}},
	{"bank", []string{"heist", "vault"}},
	{"achieve", []string{"achievements"}},
	{"bet", []string{"gamble", "premiumcasino"}},
	{"casino", []string{"gamble", "premiumcasino"}},
	{"stock", []string{"stocks", "invest", "sell"}},
	{"shop", []string{"shop", "buy"}},
	{"daily", []string{"daily", "premiumdaily"}},
	{"vault", []string{"vault"}},
	{"bal", []string{"profile"}},
}

const maxSuggestions = 5

// suggest proposes known commands for an unknown name: keyword hints first,
// then fuzzy subsequence matches ranked by score, then names the attempt
// starts with, then names within two edits.
func suggest(attempted string, names []string) []string {
	attempted = strings.ToLower(strings.TrimSpace(attempted))
	if attempted == "" {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if !seen[name] && len(out) < maxSuggestions {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, h := range keywordHints {
		if strings.Contains(attempted, h.key) || strings.Contains(h.key, attempted) {
			for _, c := range h.commands {
				add(c)
			}
		}
	}
	for _, m := range fuzzy.Find(attempted, names) {
		add(m.Str)
	}
	for _, n := range names {
		if strings.HasPrefix(attempted, n) {
			add(n)
		}
	}
	for _, n := range names {
		if levenshtein.ComputeDistance(attempted, n) <= 2 {
			add(n)
		}
	}
	return out
}
