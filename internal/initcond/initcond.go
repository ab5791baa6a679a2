// Package initcond generates seeded starting distributions for a run.
// Every generator returns bodies in the centre-of-mass frame.
package initcond

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/san-kum/gravtree/internal/body"
)

// Generator builds n bodies bound to law from seed.
type Generator func(n int, seed int64, law *body.Law) []*body.Body

var generators = map[string]Generator{
	"uniform":   Uniform,
	"disk":      Disk,
	"plummer":   Plummer,
	"collision": Collision,
	"grid":      Grid,
}

func Get(name string) (Generator, error) {
	g, ok := generators[name]
	if !ok {
		return nil, fmt.Errorf("unknown distribution: %s", name)
	}
	return g, nil
}

func Names() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Uniform scatters equal masses at rest over [-1, 1]^2.
func Uniform(n int, seed int64, law *body.Law) []*body.Body {
	rng := rand.New(rand.NewSource(seed))
	bs := make([]*body.Body, n)
	for i := range bs {
		bs[i] = body.New(i, 2*rng.Float64()-1, 2*rng.Float64()-1, 0, 0, 1.0/float64(n), law)
	}
	return centre(bs)
}

// Disk is a unit central mass with n-1 light bodies on circular orbits.
func Disk(n int, seed int64, law *body.Law) []*body.Body {
	return centre(disk(rand.New(rand.NewSource(seed)), 0, n, law, 0, 0, 0, 0))
}

func disk(rng *rand.Rand, firstID, n int, law *body.Law, cx, cy, vx, vy float64) []*body.Body {
	if law == nil {
		law = body.DefaultLaw
	}
	if n <= 0 {
		return nil
	}
	const central = 1.0
	bs := make([]*body.Body, 0, n)
	bs = append(bs, body.New(firstID, cx, cy, vx, vy, central, law))
	if n == 1 {
		return bs
	}

	m := 0.01 / float64(n-1)
	for i := 1; i < n; i++ {
		r := 0.1 + 0.9*math.Sqrt(rng.Float64())
		phi := 2 * math.Pi * rng.Float64()
		enclosed := central + 0.01*(r*r-0.01)/0.99
		v := math.Sqrt(law.G * enclosed / r)
		x, y := r*math.Cos(phi), r*math.Sin(phi)
		bs = append(bs, body.New(firstID+i, cx+x, cy+y, vx-v*math.Sin(phi), vy+v*math.Cos(phi), m, law))
	}
	return bs
}

// Plummer draws a Plummer sphere of unit mass and scale radius and
// projects it onto the plane.
func Plummer(n int, seed int64, law *body.Law) []*body.Body {
	if law == nil {
		law = body.DefaultLaw
	}
	rng := rand.New(rand.NewSource(seed))
	bs := make([]*body.Body, n)
	m := 1.0 / float64(n)

	for i := range bs {
		var r float64
		for {
			u := rng.Float64()
			if u == 0 {
				continue
			}
			r = 1 / math.Sqrt(math.Pow(u, -2.0/3.0)-1)
			if r < 10 {
				break
			}
		}
		px, py, _ := isotropic(rng, r)

		// von Neumann rejection on q = v/v_esc
		var q float64
		for {
			q = rng.Float64()
			if 0.1*rng.Float64() < q*q*math.Pow(1-q*q, 3.5) {
				break
			}
		}
		vesc := math.Sqrt(2*law.G) * math.Pow(1+r*r, -0.25)
		vx, vy, _ := isotropic(rng, q*vesc)

		bs[i] = body.New(i, px, py, vx, vy, m, law)
	}
	return centre(bs)
}

func isotropic(rng *rand.Rand, mag float64) (x, y, z float64) {
	cosT := 2*rng.Float64() - 1
	sinT := math.Sqrt(1 - cosT*cosT)
	phi := 2 * math.Pi * rng.Float64()
	return mag * sinT * math.Cos(phi), mag * sinT * math.Sin(phi), mag * cosT
}

// Collision sends two disks at each other on a slightly offset course.
func Collision(n int, seed int64, law *body.Law) []*body.Body {
	rng := rand.New(rand.NewSource(seed))
	left := n / 2
	bs := disk(rng, 0, left, law, -2, -0.3, 0.25, 0)
	bs = append(bs, disk(rng, left, n-left, law, 2, 0.3, -0.25, 0)...)
	return centre(bs)
}

// Grid places equal masses at rest on a square lattice over [-1, 1]^2.
func Grid(n int, _ int64, law *body.Law) []*body.Body {
	if n <= 0 {
		return nil
	}
	side := int(math.Ceil(math.Sqrt(float64(n))))
	step := 0.0
	if side > 1 {
		step = 2.0 / float64(side-1)
	}
	bs := make([]*body.Body, n)
	for i := range bs {
		row, col := i/side, i%side
		bs[i] = body.New(i, -1+float64(col)*step, -1+float64(row)*step, 0, 0, 1.0/float64(n), law)
	}
	return centre(bs)
}

// centre shifts positions and velocities into the centre-of-mass frame.
func centre(bs []*body.Body) []*body.Body {
	var m, x, y, vx, vy float64
	for _, b := range bs {
		m += b.Mass
		x += b.Mass * b.PX
		y += b.Mass * b.PY
		vx += b.Mass * b.VX
		vy += b.Mass * b.VY
	}
	if m == 0 {
		return bs
	}
	x, y, vx, vy = x/m, y/m, vx/m, vy/m
	for _, b := range bs {
		b.PX -= x
		b.PY -= y
		b.VX -= vx
		b.VY -= vy
	}
	return bs
}
