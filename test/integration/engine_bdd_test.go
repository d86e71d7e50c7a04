//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/pointgate/internal/classify"
	"github.com/eliteGoblin/focusd/pointgate/internal/daemon"
	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
	"github.com/eliteGoblin/focusd/pointgate/internal/infra"
	"github.com/eliteGoblin/focusd/pointgate/internal/policy"
	"github.com/eliteGoblin/focusd/pointgate/test/fixtures"
)

const fastConfig = `observer_interval_seconds: 1
enforcer_interval_seconds: 1
challenge_timeout_seconds: 30
grace_minutes: 5
`

const validResponse = "I need this for work\nbecause the client asked\nonly ten minutes"

var _ = Describe("Engine", func() {
	var (
		dataDir string
		desktop *fixtures.FakeDesktop
		engine  *daemon.Engine
		cancel  context.CancelFunc
		done    chan error
	)

	// start wires an engine over the fake desktop and runs its daemon in the background
	start := func() {
		var err error
		engine, err = daemon.NewEngine(daemon.Options{
			DataDir:        dataDir,
			SelfName:       "pointgate",
			Logger:         zap.NewNop(),
			ProcessManager: desktop,
			WindowSource:   desktop,
			Discoverer:     desktop,
		})
		Expect(err).NotTo(HaveOccurred())

		d, err := engine.Daemon()
		Expect(err).NotTo(HaveOccurred())

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() { done <- d.Run(ctx) }()
	}

	balance := func() int {
		return engine.Economy.Snapshot().Points
	}

	BeforeEach(func() {
		var err error
		dataDir, err = os.MkdirTemp("", "pointgate-integration-*")
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(filepath.Join(dataDir, daemon.ConfigFile), []byte(fastConfig), 0600)).To(Succeed())
		desktop = fixtures.NewFakeDesktop()
	})

	AfterEach(func() {
		if cancel != nil {
			cancel()
			Eventually(done, 5*time.Second).Should(Receive(BeNil()))
			Expect(engine.Close()).To(Succeed())
		}
		os.RemoveAll(dataDir)
	})

	Context("when the balance is empty", func() {
		BeforeEach(start)

		It("closes an entertainment app and presents the challenge", func() {
			desktop.Launch("steam", "Steam - Store")

			Eventually(func() bool { return engine.Enforcer.IsBlocked("steam") }, 5*time.Second, 50*time.Millisecond).Should(BeTrue())
			Expect(desktop.Running("steam")).To(BeFalse())
			Expect(desktop.Terminated()).To(ContainElement("steam"))
			Expect(engine.Gate.Visible()).To(BeTrue())

			By("publishing the block for the CLI")
			Eventually(func() string {
				st, _ := engine.State.Load()
				if st == nil {
					return ""
				}
				return st.Challenge
			}, 7*time.Second, 100*time.Millisecond).Should(Equal("steam"))
		})

		It("kills a relaunch while blocked", func() {
			desktop.Launch("steam", "Steam")
			Eventually(func() bool { return engine.Enforcer.IsBlocked("steam") }, 5*time.Second, 50*time.Millisecond).Should(BeTrue())

			desktop.Launch("steam", "Steam")
			Eventually(func() bool { return desktop.Running("steam") }, 3*time.Second, 50*time.Millisecond).Should(BeFalse())
			Expect(balance()).To(Equal(0))
		})

		It("lets the app run for free after the challenge is passed", func() {
			desktop.Launch("steam", "Steam")
			Eventually(engine.Gate.Visible, 5*time.Second, 50*time.Millisecond).Should(BeTrue())

			Expect(engine.Commands.Submit(domain.Command{Kind: domain.CommandChallenge, Response: validResponse})).To(Succeed())
			Eventually(func() bool { return engine.Enforcer.IsBlocked("steam") }, 3*time.Second, 50*time.Millisecond).Should(BeFalse())
			Expect(engine.Gate.Visible()).To(BeFalse())

			desktop.Launch("steam", "Steam")
			Consistently(func() bool { return desktop.Running("steam") }, 3*time.Second, 100*time.Millisecond).Should(BeTrue())
			Expect(balance()).To(Equal(0))
		})

		It("keeps the block when the response is rejected", func() {
			desktop.Launch("steam", "Steam")
			Eventually(engine.Gate.Visible, 5*time.Second, 50*time.Millisecond).Should(BeTrue())

			Expect(engine.Commands.Submit(domain.Command{Kind: domain.CommandChallenge, Response: "let me"})).To(Succeed())
			Consistently(func() bool { return engine.Enforcer.IsBlocked("steam") }, 2*time.Second, 100*time.Millisecond).Should(BeTrue())
		})

		It("leaves productive and neutral apps alone", func() {
			desktop.Launch("code", "main.go - Visual Studio Code")
			desktop.Launch("xfce4-settings", "Settings")

			Consistently(func() bool {
				return desktop.Running("code") && desktop.Running("xfce4-settings")
			}, 3*time.Second, 100*time.Millisecond).Should(BeTrue())
			Expect(engine.Enforcer.Blocked()).To(BeEmpty())
		})
	})

	Context("when the balance covers a few minutes", func() {
		BeforeEach(func() {
			Expect(infra.NewJSONLedgerStore(dataDir).Save(domain.PointLedger{Points: 10})).To(Succeed())
			start()
		})

		It("prepays the first minute of entertainment", func() {
			desktop.Launch("steam", "Steam")

			Eventually(balance, 5*time.Second, 50*time.Millisecond).Should(Equal(8))
			Expect(desktop.Running("steam")).To(BeTrue())
			Expect(engine.Economy.Snapshot().Today.PointsSpent).To(Equal(2))

			cur, ok := engine.Tracker.Current()
			Expect(ok).To(BeTrue())
			Expect(cur.App).To(Equal("steam"))
			Expect(cur.Category).To(Equal(domain.CategoryEntertainment))
		})

		It("applies a manual block from the command queue", func() {
			desktop.Launch("minecraft", "Minecraft 1.21")
			Eventually(func() bool {
				cur, ok := engine.Tracker.Current()
				return ok && cur.App == "minecraft"
			}, 5*time.Second, 50*time.Millisecond).Should(BeTrue())

			Expect(engine.Commands.Submit(domain.Command{Kind: domain.CommandBlock, App: "minecraft", Minutes: 10})).To(Succeed())
			Eventually(func() bool { return desktop.Running("minecraft") }, 3*time.Second, 50*time.Millisecond).Should(BeFalse())

			Expect(engine.Commands.Submit(domain.Command{Kind: domain.CommandUnblock, App: "minecraft"})).To(Succeed())
			Eventually(func() bool { return engine.Enforcer.IsBlocked("minecraft") }, 3*time.Second, 50*time.Millisecond).Should(BeFalse())
		})
	})

	Context("when categories change on disk", func() {
		BeforeEach(start)

		It("hot-reloads a preset applied by another process", func() {
			Expect(engine.Classifier.Categorize("", "dota2")).NotTo(Equal(domain.CategoryEntertainment))

			cli := classify.NewClassifier(infra.NewJSONCategoryStore(dataDir), zap.NewNop())
			p, err := policy.NewRegistry().Get("dota2")
			Expect(err).NotTo(HaveOccurred())
			_, err = policy.Apply(p, cli)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() domain.Category {
				return engine.Classifier.Categorize("", "dota2")
			}, 3*time.Second, 50*time.Millisecond).Should(Equal(domain.CategoryEntertainment))
		})
	})

	Context("on shutdown", func() {
		BeforeEach(start)

		It("lifts every block and removes the state file", func() {
			Expect(engine.Commands.Submit(domain.Command{Kind: domain.CommandBlock, App: "steam", Minutes: -1})).To(Succeed())
			Eventually(func() bool { return engine.Enforcer.IsBlocked("steam") }, 3*time.Second, 50*time.Millisecond).Should(BeTrue())

			cancel()
			Eventually(done, 5*time.Second).Should(Receive(BeNil()))
			cancel = nil

			Expect(engine.Enforcer.Blocked()).To(BeEmpty())
			st, err := engine.State.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(st).To(BeNil())
			Expect(engine.Close()).To(Succeed())
		})
	})
})
