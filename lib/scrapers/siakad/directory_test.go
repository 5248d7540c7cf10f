package siakad

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const choosePage = `<html><body>
<form action="/krs/simpan" method="post">
	<select name="idkelas">
		<option value="">-- Pilih Kelas --</option>
		<option value="37813">SD25-41301 - Analisis Data Survey R</option>
		<option value="37814">SD25-41302 - Machine Learning RA</option>
		<option value="99999">not a course code</option>
	</select>
</form>
<table id="tabelkrs">
	<thead>
		<tr><th>No</th><th>Mata Kuliah</th><th>SKS</th><th>Kelas</th></tr>
	</thead>
	<tbody>
		<tr><td>1</td><td>SD25-40003 - Statistika Dasar</td><td>3</td><td>R</td></tr>
		<tr><td>2</td><td>SD25-40011 - Komputasi Statistik</td><td>2</td><td>RA</td></tr>
	</tbody>
</table>
</body></html>`

func TestParseDirectory(t *testing.T) {
	dir := ParseDirectory(choosePage)

	require.Equal(t, []Course{
		{Code: "SD25-41301", ClassId: "37813", Name: "Analisis Data Survey R"},
		{Code: "SD25-41302", ClassId: "37814", Name: "Machine Learning RA"},
	}, dir.Available)

	require.Equal(t, []Course{
		{Code: "SD25-40003", Name: "Statistika Dasar"},
		{Code: "SD25-40011", Name: "Komputasi Statistik"},
	}, dir.Enrolled)

	require.True(t, dir.IsEnrolled("SD25-40003"))
	require.False(t, dir.IsEnrolled("SD25-41301"))
	require.Equal(t, "Analisis Data Survey R", dir.DisplayName("SD25-41301"))
	require.Equal(t, "", dir.DisplayName("SD25-40003"))
}

func TestParseDirectoryMissingSections(t *testing.T) {
	dir := ParseDirectory(`<html><body><p>Anda belum mengambil mata kuliah.</p></body></html>`)
	require.Empty(t, dir.Available)
	require.Empty(t, dir.Enrolled)

	dir = ParseDirectory("")
	require.Empty(t, dir.Available)
	require.Empty(t, dir.Enrolled)
}

// some renderings drop the tabelkrs id, the reader falls back to any
// table that looks like the study plan
func TestParseDirectoryFallbackTable(t *testing.T) {
	body := `<html><body>
	<table>
		<tr><th>Kode</th><th>Mata Kuliah</th><th>SKS</th></tr>
		<tr><td>SD25-40003</td><td>tanpa format kode</td><td>3</td></tr>
	</table>
	</body></html>`

	dir := ParseDirectory(body)
	require.Equal(t, []Course{{Code: "SD25-40003"}}, dir.Enrolled)
}

func TestParseDirectoryCodeScanFallback(t *testing.T) {
	body := `<html><body>
	<div>Terdaftar: IF25-12345 dan MA24-54321, juga IF25-12345 lagi</div>
	</body></html>`

	dir := ParseDirectory(body)
	require.Equal(t, []Course{
		{Code: "IF25-12345"},
		{Code: "MA24-54321"},
	}, dir.Enrolled)
}

func TestParseDirectoryMalformed(t *testing.T) {
	dir := ParseDirectory(`<table id="tabelkrs"><tr><td`)
	require.Empty(t, dir.Enrolled)
}
