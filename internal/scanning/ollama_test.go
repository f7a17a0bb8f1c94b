package scanning

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		text    string
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var setupErr error
		scanner, setupErr = NewOllama(server.URL(), "qwen2-vl")
		Expect(setupErr).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		text, err = scanner.ScanText([]byte("png bytes"), "image/png")
	})

	When("the model answers with a transcription", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"message": map[string]string{
						"role":    "assistant",
						"content": `{"text": "Total R$ 89,90"}`,
					},
					"done": true,
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the transcription", func() {
			Expect(text).To(Equal("Total R$ 89,90"))
		})

		It("should call the API once", func() {
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("the API fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("status 500"))
		})
	})

	When("the model answers with something that is not JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"message": map[string]string{"role": "assistant", "content": "I cannot read this"},
				"done":    true,
			}))
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})
