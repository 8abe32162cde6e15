package lengthfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/wormruler/internal/domain"
)

func TestFormatValue(t *testing.T) {
	require.Equal(t, "10.0", FormatValue(domain.Present(10)))
	require.Equal(t, "0.95", FormatValue(domain.Present(0.95)))
	require.Equal(t, "123.45678901234", FormatValue(domain.Present(123.45678901234)))
	require.Equal(t, "None", FormatValue(domain.Missing))
}

func TestEncodeDecode(t *testing.T) {
	a := 0.1
	s := domain.Series{domain.Present(10), domain.Missing, domain.Present(a + 0.2)}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, s))
	require.Equal(t, "10.0\nNone\n0.30000000000000004\n", buf.String())

	got, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestDecode_LenientMissingAndErrors(t *testing.T) {
	got, err := Decode(bytes.NewBufferString("1e1\n\nnan\n NaN \n7\n"))
	require.NoError(t, err)
	require.Equal(t, domain.Series{domain.Present(10), domain.Missing, domain.Missing, domain.Missing, domain.Present(7)}, got)

	_, err = Decode(bytes.NewBufferString("1.0\nabc\n"))
	require.ErrorContains(t, err, "line 2")
}

func TestWriteReadCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w1_raw_lengths.txt")
	s := domain.Series{domain.Present(33.5), domain.Present(34), domain.Missing}
	require.NoError(t, Write(path, s))

	got, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, s, got)

	n, err := CountLines(path)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	_, err = Read(filepath.Join(t.TempDir(), "missing.txt"))
	require.True(t, os.IsNotExist(err))
}
