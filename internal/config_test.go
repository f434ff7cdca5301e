package internal_test

import (
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/kit-checkout/internal"
)

func TestInternal(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Internal Suite")
}

var _ = Describe("Config", func() {
	var cfg *internal.Config

	BeforeEach(func() {
		cfg = internal.DefaultConfig()
	})

	Describe("ResolveBaseURL", func() {
		It("defaults to localhost on the configured port", func() {
			cfg.Server.Port = 3001
			Expect(cfg.ResolveBaseURL()).To(Equal("http://localhost:3001"))
		})

		It("prefers an explicit base url without trailing slash", func() {
			cfg.Server.BaseURL = "https://kit.example.com/"
			cfg.Server.PublicHost = "kit-preview.vercel.app"
			cfg.Environment = internal.EnvProduction
			Expect(cfg.ResolveBaseURL()).To(Equal("https://kit.example.com"))
		})

		It("uses the deployment host in production", func() {
			cfg.Environment = internal.EnvProduction
			cfg.Server.PublicHost = "kit-preview.vercel.app"
			Expect(cfg.ResolveBaseURL()).To(Equal("https://kit-preview.vercel.app"))
		})

		It("ignores the deployment host outside production", func() {
			cfg.Server.PublicHost = "kit-preview.vercel.app"
			Expect(cfg.ResolveBaseURL()).To(Equal("http://localhost:3000"))
		})

		It("builds the webhook target", func() {
			cfg.Server.BaseURL = "https://kit.example.com"
			Expect(cfg.NotificationURL()).To(Equal("https://kit.example.com/api/webhook"))
		})
	})

	Describe("Validate", func() {
		It("accepts the defaults without an access token", func() {
			Expect(cfg.MercadoPago.AccessToken).To(BeEmpty())
			Expect(cfg.Validate()).To(Succeed())
		})

		It("joins every section error", func() {
			cfg.Server.Port = 0
			cfg.Tracking.Retry.MaxAttempts = 0
			cfg.Kits = []internal.KitConfig{{ID: "kit-mae"}}
			cfg.Observability.Logging.Level = "verbose"

			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("server config: invalid port 0"))
			Expect(err.Error()).To(ContainSubstring("tracking config: retry.max_attempts"))
			Expect(err.Error()).To(ContainSubstring("kits[0] config: title is required"))
			Expect(err.Error()).To(ContainSubstring(`logging config: unknown level "verbose"`))
		})

		It("skips tracking checks when tracking is off", func() {
			cfg.Tracking.Enabled = false
			cfg.Tracking.BeaconURL = ""
			Expect(cfg.Validate()).To(Succeed())
		})
	})

	Describe("LoadConfigFromEnv", func() {
		var saved map[string]string

		setEnv := func(key, value string) {
			if _, ok := saved[key]; !ok {
				saved[key] = os.Getenv(key)
			}
			Expect(os.Setenv(key, value)).To(Succeed())
		}

		BeforeEach(func() {
			saved = map[string]string{}
		})

		AfterEach(func() {
			for key, value := range saved {
				if value == "" {
					os.Unsetenv(key)
				} else {
					os.Setenv(key, value)
				}
			}
		})

		It("reads the deployment variables", func() {
			setEnv("APP_ENV", "production")
			setEnv("PORT", "8080")
			setEnv("BASE_URL", "")
			setEnv("NEXTAUTH_URL", "https://kit.example.com")
			setEnv("MERCADOPAGO_ACCESS_TOKEN", "APP_USR-token")
			setEnv("FB_PIXEL_ID", "1234567890")
			setEnv("REDIS_URL", "redis://localhost:6379/0")

			cfg := internal.LoadConfigFromEnv()
			Expect(cfg.IsProduction()).To(BeTrue())
			Expect(cfg.Server.Port).To(Equal(8080))
			Expect(cfg.ResolveBaseURL()).To(Equal("https://kit.example.com"))
			Expect(cfg.MercadoPago.AccessToken).To(Equal("APP_USR-token"))
			Expect(cfg.Tracking.PixelID).To(Equal("1234567890"))
			Expect(cfg.Redis.URL).To(Equal("redis://localhost:6379/0"))
			Expect(cfg.Observability.Logging.Format).To(Equal("json"))
		})
	})
})
