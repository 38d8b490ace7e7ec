package payoff

// Matrix is the symbolic form of a mechanism's payoff table, for terminal
// display. Rows are the juror's vote (X then Y), columns the winning outcome
// (X then Y).
type Matrix struct {
	Title     string
	Cells     [2][2]string
	Variables []string
}

// SymbolicMatrix returns the display form of the given mechanism's table,
// with the bribe cell substituted when attack is set.
func SymbolicMatrix(m Mechanism, attack bool) Matrix {
	var mx Matrix
	switch m {
	case Redistributive:
		mx.Title = "Redistributive Mechanism"
		mx.Cells = [2][2]string{
			{"((M-x-1)d + Mp)/(x+1)", "-d"},
			{"-d", "(xd + Mp)/(M-x)"},
		}
		if attack {
			mx.Cells[1][0] = "((M-x-1)d + Mp)/(x+1) + e"
		}
		mx.Variables = []string{
			"p: base reward multiplier",
			"d: deposit amount",
			"x: number of other jurors who voted X",
			"M: total number of jurors",
		}
	case Symbiotic:
		mx.Title = "Symbiotic Mechanism"
		mx.Cells = [2][2]string{
			{"p(x+1)/M", "-d"},
			{"-d", "p(M-x)/M"},
		}
		if attack {
			mx.Cells[1][0] = "p(x+1)/M + e"
		}
		mx.Variables = []string{
			"p: base reward multiplier",
			"d: deposit amount",
			"x: number of other jurors who voted X",
			"M: total number of jurors",
		}
	default:
		mx.Title = "Basic Mechanism"
		mx.Cells = [2][2]string{
			{"p", "-d"},
			{"-d", "p"},
		}
		if attack {
			mx.Cells[1][0] = "p + e"
		}
		mx.Variables = []string{
			"p: base reward",
			"d: deposit amount",
		}
	}
	if attack {
		mx.Title += " with Attack"
		mx.Variables = append(mx.Variables, "e: bribe amount (epsilon)")
	}
	return mx
}
