package model_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/dynamo"
	"github.com/san-kum/simtree/internal/elements"
	"github.com/san-kum/simtree/internal/engine"
	"github.com/san-kum/simtree/internal/integrators"
	"github.com/san-kum/simtree/internal/logging"
	"github.com/san-kum/simtree/internal/model"
	"github.com/san-kum/simtree/internal/sim"
)

func newPendulum(angle float64) (*model.Model, *elements.PinJoint) {
	m := model.New("pendulum")
	m.Log = logging.Discard()
	joint := elements.NewPinJoint("hinge", "ground", "bob")
	joint.Coordinate.DefaultValue = angle
	m.Add(elements.NewGround("ground"), elements.NewBody("bob", 1, 1), joint)
	return m, joint
}

var _ = Describe("Model", func() {
	Describe("building", func() {
		It("walks every node through the structural phases", func() {
			m, joint := newPendulum(0.1)
			s, err := m.InitSystem()
			Expect(err).NotTo(HaveOccurred())
			Expect(m.System()).NotTo(BeNil())
			Expect(m.Phase()).To(Equal(component.PhaseStateInitialized))
			Expect(joint.Coordinate.Phase()).To(Equal(component.PhaseStateInitialized))
			Expect(s.Stage()).To(BeNumerically(">=", engine.StageTopology))
		})

		It("lists state variables relative to the root", func() {
			m, _ := newPendulum(0.1)
			_, err := m.InitSystem()
			Expect(err).NotTo(HaveOccurred())
			Expect(m.StateVariableNames()).To(Equal([]string{"hinge/hinge_angle/value", "hinge/hinge_angle/speed"}))
		})

		It("reports configuration errors with the failing component", func() {
			m, _ := newPendulum(0)
			m.Add(elements.NewBody("heavy", -1, 1))
			_, err := m.InitSystem()
			Expect(err).To(MatchError(component.ErrConfiguration))

			var ce *component.Error
			Expect(err).To(BeAssignableToTypeOf(ce))
			Expect(err.Error()).To(ContainSubstring("heavy"))
		})

		It("fails to connect a joint to a missing body", func() {
			m := model.New("broken")
			m.Log = logging.Discard()
			m.Add(elements.NewGround("ground"), elements.NewPinJoint("hinge", "ground", "nowhere"))
			Expect(m.BuildSystem()).To(MatchError(component.ErrNotFound))
			Expect(m.System()).To(BeNil())
		})

		It("rebuilds after a property change", func() {
			m, joint := newPendulum(0.1)
			_, err := m.InitSystem()
			Expect(err).NotTo(HaveOccurred())

			joint.Coordinate.DefaultValue = 0.4
			s, err := m.InitSystem()
			Expect(err).NotTo(HaveOccurred())
			Expect(m.StateVariableValues(s)).To(Equal([]float64{0.4, 0}))
		})

		It("uses its own gravity for every joint", func() {
			m, joint := newPendulum(math.Pi / 2)
			m.Gravity = 1.62
			s, err := m.InitSystem()
			Expect(err).NotTo(HaveOccurred())
			dx, err := m.ComputeDerivatives(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(dx[1]).To(BeNumerically("~", -1.62, 1e-12))
			Expect(joint.Coordinate.Acceleration(s)).To(BeNumerically("~", -1.62, 1e-12))
		})
	})

	Describe("integrand", func() {
		var (
			m  *model.Model
			s  *engine.State
			in *model.Integrand
		)

		BeforeEach(func() {
			var err error
			m, _ = newPendulum(0.3)
			s, err = m.InitSystem()
			Expect(err).NotTo(HaveOccurred())
			in, err = m.NewIntegrand(s)
			Expect(err).NotTo(HaveOccurred())
		})

		It("derives qdot and udot from a flat vector", func() {
			dx, err := in.Derive(dynamo.State{0.5, 2}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(dx[0]).To(Equal(2.0))
			Expect(dx[1]).To(BeNumerically("~", -elements.StandardGravity*math.Sin(0.5), 1e-12))
		})

		It("rejects vectors of the wrong size", func() {
			_, err := in.Derive(dynamo.State{1}, 0)
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		})

		It("refuses a state from another system", func() {
			other, _ := newPendulum(0)
			os, err := other.InitSystem()
			Expect(err).NotTo(HaveOccurred())
			_, err = m.NewIntegrand(os)
			Expect(err).To(MatchError(engine.ErrForeignState))
		})

		It("conserves energy under RK4", func() {
			x0, err := in.Initial()
			Expect(err).NotTo(HaveOccurred())

			runner := sim.New(in, integrators.NewRK4())
			runner.SetLogger(logging.Discard())
			cfg := dynamo.DefaultConfig()
			cfg.Duration = 2
			result, err := runner.Run(context.Background(), x0, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.StepsTaken).To(Equal(200))
			Expect(result.EnergyDrift).To(BeNumerically("<", 1e-6))
		})

		It("records outputs at every step", func() {
			rec, err := model.NewOutputRecorder(m, s.Clone(), "bob/height", "hinge/hinge_angle/acceleration")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Stage()).To(Equal(engine.StageAcceleration))

			x0, err := in.Initial()
			Expect(err).NotTo(HaveOccurred())
			runner := sim.New(in, integrators.NewRK4())
			runner.AddObserver(rec)
			_, err = runner.Run(context.Background(), x0, dynamo.Config{Dt: 0.01, Duration: 0.1})
			Expect(err).NotTo(HaveOccurred())

			Expect(rec.Rows).To(HaveLen(11))
			heights, err := rec.Column("bob/height")
			Expect(err).NotTo(HaveOccurred())
			Expect(heights[0]).To(BeNumerically("~", -math.Cos(0.3), 1e-12))
			Expect(heights[10]).To(BeNumerically("<", heights[0]))
		})

		It("refuses non-numeric or unknown outputs", func() {
			_, err := model.NewOutputRecorder(m, s.Clone(), "bob/colour")
			Expect(err).To(MatchError(component.ErrNotFound))
		})
	})

	Describe("ensemble", func() {
		It("runs clones of one built tree concurrently", func() {
			m, _ := newPendulum(0.2)
			s, err := m.InitSystem()
			Expect(err).NotTo(HaveOccurred())
			base, err := m.NewIntegrand(s)
			Expect(err).NotTo(HaveOccurred())

			e := sim.NewEnsemble(0)
			for i := 0; i < 4; i++ {
				in := base.Clone()
				x0, err := in.Initial()
				Expect(err).NotTo(HaveOccurred())
				x0[0] += 0.1 * float64(i)
				e.Add(sim.Member{System: in, Integrator: integrators.NewRK4(), X0: x0})
			}
			results, err := e.Run(context.Background(), dynamo.Config{Dt: 0.01, Duration: 0.5})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(4))
			Expect(results[3].States[0][0]).To(BeNumerically("~", 0.5, 1e-12))
			Expect(results[0].Final()).NotTo(Equal(results[3].Final()))
		})
	})

	Describe("work meter", func() {
		It("integrates spring power into work", func() {
			m, joint := newPendulum(0)
			joint.Coordinate.DefaultSpeed = 1
			m.Gravity = 0
			m.Add(
				elements.NewTorsionalSpring("spring", "hinge_angle", 4),
				elements.NewWorkMeter("meter", "spring/power"),
			)
			s, err := m.InitSystem()
			Expect(err).NotTo(HaveOccurred())
			Expect(m.StateVariableNames()).To(ContainElement("meter/work"))

			in, err := m.NewIntegrand(s)
			Expect(err).NotTo(HaveOccurred())
			x0, err := in.Initial()
			Expect(err).NotTo(HaveOccurred())
			result, err := sim.New(in, integrators.NewRK4()).Run(context.Background(), x0, dynamo.Config{Dt: 0.001, Duration: 0.5})
			Expect(err).NotTo(HaveOccurred())

			// Work done by the spring equals the loss of spring potential.
			final := result.Final()
			q := final[0]
			Expect(final[2]).To(BeNumerically("~", -0.5*4*q*q, 1e-6))
		})
	})

	Describe("decorations", func() {
		It("needs Position", func() {
			m, _ := newPendulum(0)
			s, err := m.InitSystem()
			Expect(err).NotTo(HaveOccurred())
			_, err = m.Decorations(false, s)
			Expect(err).To(MatchError(component.ErrNotReady))

			Expect(m.Realize(s, engine.StagePosition)).To(Succeed())
			d, err := m.Decorations(false, s)
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(HaveLen(2))
		})
	})

	It("lists float outputs by relative path", func() {
		m, _ := newPendulum(0)
		Expect(m.BuildSystem()).To(Succeed())
		Expect(m.FloatOutputs()).To(ContainElements("bob/height", "hinge/gravity_torque", "hinge/hinge_angle/value"))
	})
})
