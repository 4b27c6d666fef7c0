package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebot-go/internal/grading"
)

func TestParseRubricCSV(t *testing.T) {
	csv := "criterion,description,max_points\n" +
		"Content,Covers the topic,10\n" +
		"Clarity,\"Clear, concise\",5\n" +
		"\n" +
		"Bonus,,\n"

	rubric, err := ParseRubricCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, []grading.Criterion{
		{Name: "Content", Description: "Covers the topic", MaxPoints: 10},
		{Name: "Clarity", Description: "Clear, concise", MaxPoints: 5},
		{Name: "Bonus", Description: "", MaxPoints: 0},
	}, rubric.Criteria())
	require.Equal(t, 15, rubric.Total())
}

func TestParseRubricCSVWithoutDescriptionColumn(t *testing.T) {
	rubric, err := ParseRubricCSV(strings.NewReader("Max_Points,Criterion\n4,Grammar\n"))
	require.NoError(t, err)
	criterion, ok := rubric.Lookup("Grammar")
	require.True(t, ok)
	require.Equal(t, 4, criterion.MaxPoints)
	require.Empty(t, criterion.Description)
}

func TestParseRubricCSVRejectsBadPoints(t *testing.T) {
	for _, value := range []string{"-1", "2.5", "ten"} {
		_, err := ParseRubricCSV(strings.NewReader("criterion,description,max_points\nContent,x," + value + "\n"))
		require.True(t, errors.Is(err, grading.ErrInvalidRubric), value)
		require.Contains(t, err.Error(), "line 2")
	}
}

func TestParseRubricCSVRequiresHeader(t *testing.T) {
	_, err := ParseRubricCSV(strings.NewReader(""))
	require.True(t, errors.Is(err, grading.ErrInvalidRubric))

	_, err = ParseRubricCSV(strings.NewReader("name,points\nContent,10\n"))
	require.True(t, errors.Is(err, grading.ErrInvalidRubric))
}

func TestLoadRubricFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rubric.csv")
	require.NoError(t, os.WriteFile(path, []byte("criterion,description,max_points\nContent,Depth,10\n"), 0o600))

	rubric, err := LoadRubric(path)
	require.NoError(t, err)
	require.Equal(t, 10, rubric.Total())

	_, err = LoadRubric(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"b_essay.txt": []byte("Second essay."),
		"a_script.py": []byte("print('hello')\n"),
		"page.html":   []byte("<html><body>\n<h1>Title</h1>\n<p>Hello &amp; welcome</p>\n<script>alert(1)</script>\n</body></html>"),
		"image.png":   {0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d},
		"binary.txt":  {0x00, 0x01, 0x02, 0x03, 0xff, 0xfe, 0x00, 0x00},
		"notes.MD":    []byte("# Notes"),
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.txt"), 0o700))

	loader := NewSubmissionLoader(0, zerolog.Nop())
	submissions, err := loader.LoadDir(dir)
	require.NoError(t, err)

	ids := make([]string, 0, len(submissions))
	texts := make(map[string]string)
	for _, submission := range submissions {
		ids = append(ids, submission.ID)
		texts[submission.ID] = submission.Text
	}
	require.Equal(t, []string{"a_script.py", "b_essay.txt", "notes.MD", "page.html"}, ids)
	require.Equal(t, "Second essay.", texts["b_essay.txt"])
	require.Equal(t, "Title Hello & welcome", texts["page.html"])
}

func TestExtractRejectsOversizedAndUnsupported(t *testing.T) {
	loader := NewSubmissionLoader(8, zerolog.Nop())

	_, err := loader.Extract("essay.txt", []byte("more than eight bytes"))
	require.True(t, errors.Is(err, ErrUnsupportedSubmission))

	_, err = loader.Extract("essay.docx", []byte("text"))
	require.True(t, errors.Is(err, ErrUnsupportedSubmission))

	text, err := loader.Extract("ok.css", []byte("a{}"))
	require.NoError(t, err)
	require.Equal(t, "a{}", text)
}
