package pgconv

import (
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericConversion(t *testing.T) {
	t.Run("round trips cent amounts", func(t *testing.T) {
		for _, v := range []int64{0, 1, -1, 99_999, 1_000_000, 1<<62 - 1} {
			got, err := NumericToInt64(Int64ToNumeric(v))
			require.NoError(t, err)
			assert.Equal(t, v, got)
		}
	})

	t.Run("applies positive exponents", func(t *testing.T) {
		n := pgtype.Numeric{Int: big.NewInt(5), Exp: 3, Valid: true}
		got, err := NumericToInt64(n)
		require.NoError(t, err)
		assert.Equal(t, int64(5_000), got)
	})

	t.Run("rejects NULL", func(t *testing.T) {
		_, err := NumericToInt64(pgtype.Numeric{})
		require.Error(t, err)
	})

	t.Run("rejects fractional values", func(t *testing.T) {
		n := pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true}
		_, err := NumericToInt64(n)
		require.Error(t, err)
	})

	t.Run("rejects overflow", func(t *testing.T) {
		huge := new(big.Int).Lsh(big.NewInt(1), 80)
		_, err := NumericToInt64(pgtype.Numeric{Int: huge, Valid: true})
		require.Error(t, err)
	})
}
