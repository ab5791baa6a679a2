package barneshut

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/gravtree/internal/body"
)

var _ = Describe("Model", func() {
	var (
		ctx context.Context
		m   *Model
	)

	BeforeEach(func() {
		ctx = context.Background()
		m = newTestModel()
	})

	Context("with one body at the origin", func() {
		var b *body.Body

		BeforeEach(func() {
			b = body.New(0, 0, 0, 0, 0, 1, nil)
			Expect(m.Build(ctx, []Body{b}, 0.5)).To(Succeed())
		})

		It("has a single leaf carrying the whole mass", func() {
			Expect(m.Root().M()).To(Equal(1.0))
			Expect(m.Root().Slots[0].Kind).To(Equal(SlotBody))
			Expect(m.Stats().Nodes).To(Equal(1))
		})

		It("exerts no force on itself", func() {
			m.Accumulate(b)
			Expect(b.AX).To(BeZero())
			Expect(b.AY).To(BeZero())
		})
	})

	Context("with four unit masses on the unit square corners", func() {
		var bodies []*body.Body

		BeforeEach(func() {
			bodies = []*body.Body{
				body.New(0, 0, 0, 0, 0, 1, nil),
				body.New(1, 1, 0, 0, 0, 1, nil),
				body.New(2, 0, 1, 0, 0, 1, nil),
				body.New(3, 1, 1, 0, 0, 1, nil),
			}
			Expect(m.Build(ctx, asBodies(bodies), 1.0)).To(Succeed())
		})

		It("centres the root on the square", func() {
			root := m.Root()
			Expect(root.M()).To(Equal(4.0))
			Expect(root.X()).To(BeNumerically("~", 0.5, 1e-12))
			Expect(root.Y()).To(BeNumerically("~", 0.5, 1e-12))
			Expect(root.HalfWidth).To(Equal(0.5))
		})

		It("puts each corner in its own quadrant", func() {
			for q, s := range m.Root().Slots {
				Expect(s.Kind).To(Equal(SlotBody), "quadrant %d", q)
			}
		})

		It("treats the root as one mass for a distant body", func() {
			far := body.New(4, 100, 100, 0, 0, 1, nil)
			in := m.Accumulate(far)
			Expect(in).To(Equal(Interactions{Approx: 1}))

			want := body.New(5, 100, 100, 0, 0, 1, nil)
			want.AccGravityFrom(&point{x: 0.5, y: 0.5, m: 4})
			Expect(far.AX).To(BeNumerically("~", want.AX, 1e-15))
			Expect(far.AY).To(BeNumerically("~", want.AY, 1e-15))
		})

		It("opens every leaf for a body inside the square", func() {
			in := m.AccumulateTheta(bodies[0], 0.5)
			Expect(in).To(Equal(Interactions{Direct: 3}))
		})

		It("always opens a node whose centre of mass the target sits on", func() {
			centre := body.New(4, 0.5, 0.5, 0, 0, 1, nil)
			for _, theta := range []float64{0.9, 100} {
				centre.ResetAcc()
				in := m.AccumulateTheta(centre, theta)
				Expect(in).To(Equal(Interactions{Direct: 4}), "theta %v", theta)
				Expect(math.IsInf(centre.AX, 0) || math.IsNaN(centre.AX)).To(BeFalse())
				Expect(centre.AX).To(BeNumerically("~", 0, 1e-12))
				Expect(centre.AY).To(BeNumerically("~", 0, 1e-12))
			}
		})
	})

	Context("with bodies spread uniformly over the unit square", func() {
		It("grows the interaction count sub-quadratically", func() {
			count := func(n int) float64 {
				Expect(m.Build(ctx, asBodies(uniform(n, 41)), 0.5)).To(Succeed())
				in, err := m.AccumulateAll(ctx)
				Expect(err).NotTo(HaveOccurred())
				return float64(in.Total())
			}

			small, large := count(1000), count(16000)
			// 16x the bodies would cost 256x under direct summation
			Expect(large / small).To(BeNumerically("<", 100))
		})

		It("approaches the direct sum as theta shrinks", func() {
			bs := uniform(800, 43)
			ref := bruteForce(bs)
			Expect(m.Build(ctx, asBodies(bs), 0.8)).To(Succeed())

			errAt := func(theta float64) float64 {
				resetAll(bs)
				for _, b := range bs {
					m.AccumulateTheta(b, theta)
				}
				return relRMS(bs, ref)
			}

			coarse, fine, exact := errAt(0.8), errAt(0.2), errAt(0)
			Expect(fine).To(BeNumerically("<", coarse))
			Expect(exact).To(BeNumerically("<", 1e-12))
		})
	})
})

type point struct{ x, y, m float64 }

func (p *point) X() float64 { return p.x }
func (p *point) Y() float64 { return p.y }
func (p *point) M() float64 { return p.m }
