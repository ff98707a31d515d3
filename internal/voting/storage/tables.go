package storage

import (
	"context"
	"strconv"
	"time"
)

// Table is a flat dump of one logical table for the admin surface.
// It is built from Query reads, so every backend produces identical dumps
// for identical event histories.
type Table struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Logical table names exposed to the admin surface.
const (
	TableUsers          = "users"
	TableElections      = "elections"
	TableCandidates     = "candidates"
	TableEligibleVoters = "eligible_voters"
	TableBallots        = "ballots"
	TableRankings       = "rankings"
)

// TableNames lists the logical tables in a stable order.
func TableNames() []string {
	return []string{
		TableUsers,
		TableElections,
		TableCandidates,
		TableEligibleVoters,
		TableBallots,
		TableRankings,
	}
}

// TableData builds the dump for one logical table. Unknown names fail with
// ErrNotFound.
func TableData(ctx context.Context, q Query, name string) (Table, error) {
	switch name {
	case TableUsers:
		return usersTable(ctx, q)
	case TableElections:
		return electionsTable(ctx, q)
	case TableCandidates:
		return candidatesTable(ctx, q)
	case TableEligibleVoters:
		return eligibleVotersTable(ctx, q)
	case TableBallots:
		return ballotsTable(ctx, q)
	case TableRankings:
		return rankingsTable(ctx, q)
	}
	return Table{}, ErrNotFound
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func usersTable(ctx context.Context, q Query) (Table, error) {
	users, err := q.ListUsers(ctx)
	if err != nil {
		return Table{}, err
	}
	table := Table{Name: TableUsers, Columns: []string{"name", "email", "role", "created_at", "updated_at"}}
	for _, u := range users {
		table.Rows = append(table.Rows, []string{
			u.Name, u.Email, string(u.Role), formatTime(u.CreatedAt), formatTime(u.UpdatedAt),
		})
	}
	return table, nil
}

func electionsTable(ctx context.Context, q Query) (Table, error) {
	elections, err := q.ListElections(ctx)
	if err != nil {
		return Table{}, err
	}
	table := Table{Name: TableElections, Columns: []string{
		"name", "owner_name", "secret_ballot", "allow_vote", "allow_edit",
		"launched", "no_voting_before", "no_voting_after",
	}}
	for _, e := range elections {
		table.Rows = append(table.Rows, []string{
			e.Name,
			e.OwnerName,
			strconv.FormatBool(e.SecretBallot),
			strconv.FormatBool(e.AllowVote),
			strconv.FormatBool(e.AllowEdit),
			strconv.FormatBool(e.Launched),
			formatOptionalTime(e.NoVotingBefore),
			formatOptionalTime(e.NoVotingAfter),
		})
	}
	return table, nil
}

func candidatesTable(ctx context.Context, q Query) (Table, error) {
	elections, err := q.ListElections(ctx)
	if err != nil {
		return Table{}, err
	}
	table := Table{Name: TableCandidates, Columns: []string{"election_name", "candidate_name"}}
	for _, e := range elections {
		candidates, err := q.ListCandidates(ctx, e.Name)
		if err != nil {
			return Table{}, err
		}
		for _, c := range candidates {
			table.Rows = append(table.Rows, []string{e.Name, c})
		}
	}
	return table, nil
}

func eligibleVotersTable(ctx context.Context, q Query) (Table, error) {
	elections, err := q.ListElections(ctx)
	if err != nil {
		return Table{}, err
	}
	table := Table{Name: TableEligibleVoters, Columns: []string{"election_name", "voter_name"}}
	for _, e := range elections {
		voters, err := q.ListVotersForElection(ctx, e.Name)
		if err != nil {
			return Table{}, err
		}
		for _, v := range voters {
			table.Rows = append(table.Rows, []string{e.Name, v})
		}
	}
	return table, nil
}

func ballotsTable(ctx context.Context, q Query) (Table, error) {
	elections, err := q.ListElections(ctx)
	if err != nil {
		return Table{}, err
	}
	table := Table{Name: TableBallots, Columns: []string{"election_name", "voter_name", "confirmation", "when_cast"}}
	for _, e := range elections {
		ballots, err := q.ListBallots(ctx, e.Name)
		if err != nil {
			return Table{}, err
		}
		for _, b := range ballots {
			table.Rows = append(table.Rows, []string{
				b.ElectionName, b.VoterName, b.Confirmation, formatTime(b.WhenCast),
			})
		}
	}
	return table, nil
}

func rankingsTable(ctx context.Context, q Query) (Table, error) {
	elections, err := q.ListElections(ctx)
	if err != nil {
		return Table{}, err
	}
	table := Table{Name: TableRankings, Columns: []string{"election_name", "voter_name", "candidate_name", "rank"}}
	for _, e := range elections {
		ballots, err := q.ListBallots(ctx, e.Name)
		if err != nil {
			return Table{}, err
		}
		for _, b := range ballots {
			for _, r := range b.Rankings {
				table.Rows = append(table.Rows, []string{
					b.ElectionName, b.VoterName, r.Candidate, strconv.Itoa(r.Rank),
				})
			}
		}
	}
	return table, nil
}
