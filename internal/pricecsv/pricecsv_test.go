package pricecsv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pricesync_errors "pricesync/internal"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func Test_determineColumnOrder(t *testing.T) {
	out, err := determineColumnOrder([]string{"Price", "AS OF DATE", "TwelveData_Symbol", "volume"}, SymbolColumnTwelveData)
	require.NoError(t, err)
	require.Equal(t, map[string]int{
		"price":             0,
		"as_of_date":        1,
		"twelvedata_symbol": 2,
		"volume":            3,
	}, out)

	_, err = determineColumnOrder([]string{"as_of_date", "price", "symbol"}, SymbolColumnYahoo)
	require.ErrorContains(t, err, "missing required column 'yfinance_symbol'")
}

func TestDecode(t *testing.T) {
	t.Run("valid with duplicates", func(t *testing.T) {
		input := strings.Join([]string{
			"as_of_date,price,yfinance_symbol,volume",
			"2024-05-02,101.5,GGAL.BA,10",
			"2024-05-01,100.10,GGAL.BA,",
			"2024-05-01,55,AAPL,",
			"2024-05-01,100.20,GGAL.BA,",
		}, "\n")

		rows, err := Decode(strings.NewReader(input), SymbolColumnYahoo)
		require.NoError(t, err)

		expected := []Row{
			{AsOfDate: date("2024-05-01"), Price: decimal.RequireFromString("55"), Symbol: "AAPL"},
			{AsOfDate: date("2024-05-01"), Price: decimal.RequireFromString("100.20"), Symbol: "GGAL.BA"},
			{AsOfDate: date("2024-05-02"), Price: decimal.RequireFromString("101.5"), Symbol: "GGAL.BA", Volume: decimal.NewNullDecimal(decimal.NewFromInt(10))},
		}
		require.Empty(t, cmp.Diff(expected, rows))
	})

	rejected := map[string]string{
		"zero price":       "as_of_date,price,yfinance_symbol\n2024-05-01,0,AAPL\n",
		"negative price":   "as_of_date,price,yfinance_symbol\n2024-05-01,-5,AAPL\n",
		"NaN price":        "as_of_date,price,yfinance_symbol\n2024-05-01,NaN,AAPL\n",
		"text price":       "as_of_date,price,yfinance_symbol\n2024-05-01,abc,AAPL\n",
		"bad date":         "as_of_date,price,yfinance_symbol\n2024-13-45,10,AAPL\n",
		"blank symbol":     "as_of_date,price,yfinance_symbol\n2024-05-01,10,   \n",
		"missing column":   "as_of_date,price\n2024-05-01,10\n",
		"empty file":       "",
		"one bad among ok": "as_of_date,price,yfinance_symbol\n2024-05-01,10,AAPL\n2024-05-02,-1,AAPL\n",
	}
	for name, input := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(input), SymbolColumnYahoo)
			require.ErrorIs(t, err, pricesync_errors.ErrValidation)
		})
	}

	t.Run("header only", func(t *testing.T) {
		rows, err := Decode(strings.NewReader("as_of_date,price,twelvedata_symbol\n"), SymbolColumnTwelveData)
		require.NoError(t, err)
		require.Empty(t, rows)
	})
}

func TestWriteFileThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "twelvedata_prices.csv")
	rows := []Row{
		{AsOfDate: date("2024-05-02"), Price: decimal.RequireFromString("7.25"), Symbol: "YPF", Exchange: "NYSE", Currency: "USD", Interval: "1day"},
		{AsOfDate: date("2024-05-01"), Price: decimal.RequireFromString("100.10"), Symbol: "AAPL", Exchange: "NASDAQ", Currency: "USD", Interval: "1day", Volume: decimal.NewNullDecimal(decimal.NewFromInt(1200))},
		{AsOfDate: date("2024-05-01"), Price: decimal.RequireFromString("7"), Symbol: "YPF", Exchange: "NYSE", Currency: "USD", Interval: "1day"},
	}
	require.NoError(t, WriteFile(path, SymbolColumnTwelveData, rows))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strings.Join([]string{
		"as_of_date,price,twelvedata_symbol,exchange,currency,interval,volume",
		"2024-05-01,100.1,AAPL,NASDAQ,USD,1day,1200",
		"2024-05-01,7,YPF,NYSE,USD,1day,",
		"2024-05-02,7.25,YPF,NYSE,USD,1day,",
		"",
	}, "\n"), string(content))

	loaded, err := Load(path, SymbolColumnTwelveData)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	require.True(t, loaded[0].Price.Equal(decimal.RequireFromString("100.10")))
	require.Equal(t, "AAPL", loaded[0].Symbol)
}
