package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/gravtree/internal/barneshut"
	"github.com/san-kum/gravtree/internal/body"
)

func TestSceneSVG(t *testing.T) {
	sc := Scene{
		Title: "a < b",
		Bodies: []*body.Body{
			{PX: -1, PY: -1, Mass: 1},
			{PX: 1, PY: 1, Mass: 4},
		},
		Cells: []barneshut.Cell{{X0: -1, Y0: -1, Side: 2}},
		Track: [][2]float64{{0, 0}, {0.5, 0.5}, {1, 1}},
	}

	var buf bytes.Buffer
	if err := SceneSVG(&buf, sc); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	checks := []struct {
		what string
		want string
		n    int
	}{
		{"header", "<svg ", 1},
		{"circles", "<circle ", 2},
		{"cell rects", `<rect x=`, 1},
		{"track", "<path ", 1},
		{"escaped title", "<title>a &lt; b</title>", 1},
	}
	for _, c := range checks {
		if got := strings.Count(out, c.want); got != c.n {
			t.Errorf("%s: found %d of %q, want %d", c.what, got, c.want, c.n)
		}
	}
	if !strings.HasSuffix(out, "</svg>\n") {
		t.Error("document not closed")
	}
	if !strings.Contains(out, `width="800"`) {
		t.Error("default size not applied")
	}
}

func TestSceneSVGOrientation(t *testing.T) {
	f := fit(Scene{Bodies: []*body.Body{{PX: 0, PY: 0}, {PX: 10, PY: 10}}}, 100, 100)

	x0, y0 := f.point(0, 0)
	x1, y1 := f.point(10, 10)
	if x1 <= x0 {
		t.Errorf("x should grow rightwards: %v -> %v", x0, x1)
	}
	if y1 >= y0 {
		t.Errorf("y should grow upwards: %v -> %v", y0, y1)
	}
	for _, v := range []float64{x0, y0, x1, y1} {
		if v < 0 || v > 100 {
			t.Errorf("point %v off the page", v)
		}
	}
}

func TestSceneSVGEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := SceneSVG(&buf, Scene{Width: 10, Height: 10}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "<circle") || strings.Contains(buf.String(), "<path") {
		t.Error("empty scene should draw nothing")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.svg")
	if err := WriteFile(path, Scene{Bodies: []*body.Body{{Mass: 1}}}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("<circle")) {
		t.Error("file missing body")
	}
}
