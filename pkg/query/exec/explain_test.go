package exec_test

import (
	"testing"

	"github.com/solidb/solidb/pkg/query/exec"
	"github.com/solidb/solidb/pkg/query/parser"
	"github.com/stretchr/testify/require"
)

func TestExplainReportsPerClauseSteps(t *testing.T) {
	db := setup(t)
	q, err := parser.Parse(`FOR u IN users FILTER u.age >= 18 SORT u.name RETURN u.name`)
	require.NoError(t, err)

	plan, err := exec.New(db, nil, nil).Explain(q)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 4)
	require.Equal(t, "*ast.ForClause", plan.Steps[0].Clause)
	require.Equal(t, 3, plan.Steps[0].RowsOut)
	require.Equal(t, "*ast.ReturnClause", plan.Steps[3].Clause)
	require.Equal(t, 2, plan.Steps[3].RowsOut)
}
