package botflow

import (
	"fmt"
	"strings"

	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
)

const (
	msgGreeting       = "Ola! Bem-vindo ao atendimento da clinica."
	msgPickOption     = "Digite o numero da opcao desejada."
	msgInvalidOption  = "Opcao invalida."
	msgBackToMenu     = "Digite *menu* a qualquer momento para voltar ao inicio."
	msgNoUnits        = "Nenhuma unidade disponivel no momento. Tente novamente mais tarde."
	msgNoDepartments  = "Nenhum atendimento disponivel nesta unidade no momento."
	msgNoSellers      = "Nenhum vendedor disponivel nesta unidade no momento."
	msgNoPrices       = "Tabela de precos indisponivel para esta unidade."
	msgLeftQueue      = "Voce saiu da fila."
	msgAlreadyQueued  = "Voce ja esta em uma fila de atendimento. Digite *menu* para sair dela."
	msgQueueClosedNow = "Este atendimento nao esta disponivel no momento."
)

func rootMenu(units []model.Unit) string {
	if len(units) == 0 {
		return msgNoUnits
	}
	var b strings.Builder
	b.WriteString("Escolha uma unidade:\n")
	for i, u := range units {
		fmt.Fprintf(&b, "%d - %s\n", i+1, u.Name)
	}
	b.WriteString(msgPickOption)
	return b.String()
}

func unitMenu(unit *model.Unit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Unidade %s:\n", unit.Name)
	b.WriteString("1 - Endereco\n")
	b.WriteString("2 - Tabela de precos\n")
	b.WriteString("3 - Falar com atendente\n")
	b.WriteString("4 - Falar com vendedor\n")
	b.WriteString(msgBackToMenu)
	return b.String()
}

func departmentMenu(depts []model.Department) string {
	if len(depts) == 0 {
		return msgNoDepartments
	}
	var b strings.Builder
	b.WriteString("Escolha o atendimento:\n")
	for i, d := range depts {
		fmt.Fprintf(&b, "%d - %s\n", i+1, d.Name)
	}
	b.WriteString(msgPickOption)
	return b.String()
}

func sellerMenu(sellers []model.Seller) string {
	if len(sellers) == 0 {
		return msgNoSellers
	}
	var b strings.Builder
	b.WriteString("Escolha um vendedor:\n")
	for i, s := range sellers {
		fmt.Fprintf(&b, "%d - %s\n", i+1, s.Name)
	}
	b.WriteString(msgPickOption)
	return b.String()
}

func priceList(unit *model.Unit, items []model.PriceItem) string {
	if len(items) == 0 {
		return msgNoPrices
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tabela de precos - %s:\n", unit.Name)
	for _, item := range items {
		fmt.Fprintf(&b, "%s: %s\n", item.Name, formatPrice(item.PriceCents))
	}
	b.WriteString(msgBackToMenu)
	return b.String()
}

func sellerContact(seller *model.Seller) string {
	return fmt.Sprintf("Fale com %s pelo numero %s.", seller.Name, seller.Phone)
}

func formatPrice(cents int64) string {
	return fmt.Sprintf("R$ %d,%02d", cents/100, cents%100)
}
