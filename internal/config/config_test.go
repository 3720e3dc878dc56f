package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arendil/modalsolve/internal/config"
)

var _ = Describe("Config", func() {
	Describe("Load and Save", func() {
		It("round-trips a scenario through YAML", func() {
			cfg := config.DefaultConfig()
			cfg.Name = "bench"
			cfg.Dt = 0.002
			cfg.Order = "quadratic"
			cfg.System.Mass.Diagonal = []float64{2, 1}
			cfg.System.Stiffness.Rows = [][]float64{{300, -100}, {-100, 200}}
			cfg.Init.Displacement = []float64{0.1, 0}

			path := filepath.Join(GinkgoT().TempDir(), "scenario.yaml")
			Expect(config.Save(path, cfg)).To(Succeed())

			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Name).To(Equal("bench"))
			Expect(loaded.Dt).To(Equal(0.002))
			Expect(loaded.Order).To(Equal("quadratic"))
			Expect(loaded.System.Mass.Diagonal).To(Equal([]float64{2, 1}))
			Expect(loaded.System.Stiffness.Rows).To(HaveLen(2))
			Expect(loaded.Init.Displacement).To(Equal([]float64{0.1, 0}))
		})

		It("fills defaults for fields the file omits", func() {
			path := filepath.Join(GinkgoT().TempDir(), "sparse.yaml")
			Expect(os.WriteFile(path, []byte("name: sparse\n"), 0644)).To(Succeed())

			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Dt).To(Equal(config.DefaultDt))
			Expect(loaded.Order).To(Equal(config.DefaultOrder))
			Expect(loaded.SRS.Q).To(Equal(config.DefaultQ))
		})

		It("rejects a missing file", func() {
			_, err := config.Load(filepath.Join(GinkgoT().TempDir(), "nope.yaml"))
			Expect(err).To(HaveOccurred())
		})

		It("rejects malformed YAML", func() {
			path := filepath.Join(GinkgoT().TempDir(), "bad.yaml")
			Expect(os.WriteFile(path, []byte("dt: [not a number\n"), 0644)).To(Succeed())
			_, err := config.Load(path)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("MatrixConfig", func() {
		It("builds a diagonal matrix", func() {
			mc := config.MatrixConfig{Diagonal: []float64{3, 5}}
			m, err := mc.Build(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.At(0, 0)).To(Equal(3.0))
			Expect(m.At(1, 1)).To(Equal(5.0))
			Expect(m.At(0, 1)).To(BeZero())
		})

		It("builds a full matrix from rows", func() {
			mc := config.MatrixConfig{Rows: [][]float64{{1, 2}, {3, 4}}}
			m, err := mc.Build(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.At(1, 0)).To(Equal(3.0))
		})

		It("yields zeros when unset", func() {
			m, err := config.MatrixConfig{}.Build(3)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.At(1, 1)).To(BeZero())
		})

		It("rejects a size mismatch", func() {
			_, err := config.MatrixConfig{Diagonal: []float64{1, 2, 3}}.Build(2)
			Expect(err).To(HaveOccurred())

			_, err = config.MatrixConfig{Rows: [][]float64{{1, 2}, {3}}}.Build(2)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SystemConfig", func() {
		It("requires mass and stiffness", func() {
			var sc config.SystemConfig
			_, _, _, err := sc.Matrices()
			Expect(err).To(MatchError(ContainSubstring("mass matrix")))

			sc.Mass.Diagonal = []float64{1}
			_, _, _, err = sc.Matrices()
			Expect(err).To(MatchError(ContainSubstring("stiffness matrix")))
		})

		It("treats absent damping as undamped", func() {
			sc := config.SystemConfig{
				Mass:      config.MatrixConfig{Diagonal: []float64{1, 1}},
				Stiffness: config.MatrixConfig{Diagonal: []float64{100, 400}},
			}
			_, c, _, err := sc.Matrices()
			Expect(err).NotTo(HaveOccurred())
			Expect(c.At(0, 0)).To(BeZero())
			Expect(c.At(1, 1)).To(BeZero())
		})
	})

	Describe("SynthConfig", func() {
		It("builds a pulse confined to its on-time", func() {
			s := &config.SynthConfig{Kind: "pulse", Amplitude: 2, Duration: 0.01, Samples: 50}
			f, err := s.Build(2, 0.001)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.At(0, 0)).To(Equal(2.0))
			Expect(f.At(0, 9)).To(Equal(2.0))
			Expect(f.At(0, 10)).To(BeZero())
			Expect(f.At(1, 0)).To(BeZero())
		})

		It("builds a sine at the requested frequency", func() {
			s := &config.SynthConfig{Kind: "sine", DOF: 1, Amplitude: 1, Frequency: 250, Samples: 4}
			f, err := s.Build(2, 0.001)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.At(1, 0)).To(BeZero())
			Expect(f.At(1, 1)).To(BeNumerically("~", 1.0, 1e-12))
		})

		It("rejects unknown kinds and bad sample counts", func() {
			_, err := (&config.SynthConfig{Kind: "sawtooth", Samples: 10}).Build(1, 0.001)
			Expect(err).To(HaveOccurred())

			_, err = (&config.SynthConfig{Kind: "step"}).Build(1, 0.001)
			Expect(err).To(HaveOccurred())

			_, err = (&config.SynthConfig{Kind: "step", DOF: 5, Samples: 10}).Build(2, 0.001)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SRSConfig", func() {
		It("spans fmin to fmax logarithmically", func() {
			grid := config.SRSConfig{FMin: 1, FMax: 100, Points: 3}.FreqGrid()
			Expect(grid).To(HaveLen(3))
			Expect(grid[0]).To(BeNumerically("~", 1, 1e-12))
			Expect(grid[1]).To(BeNumerically("~", 10, 1e-9))
			Expect(grid[2]).To(BeNumerically("~", 100, 1e-9))
		})

		It("falls back to defaults for unset bounds", func() {
			grid := config.SRSConfig{}.FreqGrid()
			Expect(grid).To(HaveLen(config.DefaultFPoints))
			Expect(grid[0]).To(BeNumerically("~", config.DefaultFMin, 1e-12))
			Expect(grid[len(grid)-1]).To(BeNumerically("~", config.DefaultFMax, 1e-6))
		})
	})
})
