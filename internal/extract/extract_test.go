package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/voterstat/internal/lookup"
)

func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func TestExtractFullResponse(t *testing.T) {
	t.Parallel()

	res, err := New().Extract(fixture(t, "voter_full.html"))
	require.NoError(t, err)
	require.Equal(t, lookup.Result{
		RegistrationStatus: "active",
		Party:              "DEM",
		BallotStatus:       "accepted",
	}, res)
}

func TestExtractWithoutBallotEntry(t *testing.T) {
	t.Parallel()

	res, err := New().Extract(fixture(t, "voter_no_ballot.html"))
	require.NoError(t, err)
	require.Equal(t, "active", res.RegistrationStatus)
	require.Equal(t, "DEM", res.Party)
	require.Empty(t, res.BallotStatus)
}

func TestExtractParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"no voter container", fixture(t, "voter_not_found.html")},
		{"too few detail nodes", fixture(t, "voter_short.html")},
		{"no details block", `<div id="voter" class="active"><div>only one</div></div>`},
		{"no class", `<div id="voter"><div>a</div><div>b</div></div>`},
		{"empty body", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New().Extract(tt.body)
			require.ErrorIs(t, err, lookup.ErrParse)
		})
	}
}

func TestExtractElementNodeText(t *testing.T) {
	t.Parallel()

	// Position 3 is an element here; its text content is used.
	body := `<div id="voter" class="purged"><div></div><div>` +
		`<i>a</i><u></u><b> REP </b></div></div>`
	res, err := New().Extract(body)
	require.NoError(t, err)
	require.Equal(t, "purged", res.RegistrationStatus)
	require.Equal(t, "REP", res.Party)
	require.Empty(t, res.BallotStatus)
}

func TestDescendantsDocumentOrder(t *testing.T) {
	t.Parallel()

	body := `<div id="voter" class="c"><div></div><div>` +
		"\n<span>Party:</span> DEM\n<span>Absentee Ballot:</span> accepted\n</div></div>"
	res, err := New().Extract(body)
	require.NoError(t, err)
	require.Equal(t, "DEM", res.Party)
	require.Equal(t, "accepted", res.BallotStatus)
}
