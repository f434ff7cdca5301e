package payment

import (
	"net/http"

	"github.com/frahmantamala/kit-checkout/internal"
	"github.com/frahmantamala/kit-checkout/internal/mercadopago"
)

// Provider causes with their own buyer-facing message.
const (
	causeAmountOutOfLimits = 2061
	causeEmailInUse        = 2026
)

const (
	msgConfigError      = "Erro de configuração do sistema. Por favor, entre em contato com o suporte."
	msgInvalidResponse  = "Erro inesperado ao processar a resposta do serviço de pagamentos."
	msgUnexpectedCreate = "Ocorreu um erro inesperado ao processar seu pagamento. Por favor, tente novamente mais tarde."
	msgInvalidJSON      = "Formato de requisição inválido. O corpo deve ser um JSON válido."
	msgInvalidContent   = "Content-Type deve ser application/json"
	msgKitNotFound      = "Kit não encontrado."

	msgMissingPaymentID = "ID do pagamento não encontrado"
	msgSystemConfig     = "Erro de configuração do sistema"
	msgCheckInternal    = "Erro interno ao verificar pagamento"
	msgWebhookFetch     = "Falha ao verificar pagamento"
	msgWebhookInternal  = "Erro interno no processamento do webhook"
	msgWebhookIgnored   = "Webhook ignorado"
)

// providerError turns a non-2xx provider answer into the message shown to the buyer.
func providerError(apiErr *mercadopago.APIError) *internal.AppError {
	status := apiErr.StatusCode
	message := "Não foi possível processar seu pagamento no momento."
	code := internal.ProviderErrorCode(status)

	switch {
	case status == http.StatusBadRequest:
		message = "Dados de pagamento inválidos. Por favor, verifique as informações e tente novamente."
		if apiErr.HasCause(causeAmountOutOfLimits) {
			message = "O valor do pagamento está fora dos limites permitidos."
		} else if apiErr.HasCause(causeEmailInUse) {
			message = "O email informado já está em uso. Por favor, utilize outro email."
		}
	case status == http.StatusUnauthorized:
		message = "Erro de autenticação com o serviço de pagamentos. Por favor, tente novamente mais tarde."
		code = internal.ErrCodeAuthentication
	case status == http.StatusForbidden:
		message = "Acesso não autorizado ao serviço de pagamentos."
		code = internal.ErrCodeAuthorization
	case status == http.StatusNotFound:
		message = "Recurso não encontrado no serviço de pagamentos."
		code = internal.ErrCodeNotFound
	case status == http.StatusUnprocessableEntity:
		message = "Não foi possível processar a solicitação. Verifique os dados e tente novamente."
		code = internal.ErrCodeUnprocessable
	case status == http.StatusTooManyRequests:
		message = "Muitas requisições em pouco tempo. Por favor, aguarde alguns instantes e tente novamente."
		code = internal.ErrCodeRateLimitExceeded
	case status >= http.StatusInternalServerError:
		message = "Serviço de pagamento temporariamente indisponível. Por favor, tente novamente em alguns minutos."
		code = internal.ErrCodeServiceUnavailable
	}

	return internal.NewExternalError(message, code, status, apiErr)
}
