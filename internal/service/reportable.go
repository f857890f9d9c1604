package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/workflow"
)

// Reportable renders a request family for exports and notification templates.
type Reportable interface {
	Headers() []string
	Row(req models.Request) map[string]string
	Subject(req models.Request) string
	Message(notice TransitionNotice) string
}

var baseHeaders = []string{"Código", "Tipo", "Status", "Data inicial", "Data final", "Motivo", "Criado em"}

func baseRow(req models.Request) map[string]string {
	row := map[string]string{
		"Código":       req.ExternalID(),
		"Tipo":         req.Variant,
		"Status":       req.Status,
		"Data inicial": req.DataInicial.Format("02/01/2006"),
		"Motivo":       req.Category,
		"Criado em":    req.CreatedAt.Format("02/01/2006 15:04"),
	}
	if req.DataFinal != nil {
		row["Data final"] = req.DataFinal.Format("02/01/2006")
	}
	return row
}

func detail(req models.Request, key string) string {
	if len(req.Details) == 0 {
		return ""
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(req.Details, &fields); err != nil {
		return ""
	}
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func optional(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

func transitionLine(notice TransitionNotice) string {
	line := fmt.Sprintf("Solicitação %s passou de %s para %s (%s por %s) em %s.",
		notice.Request.ExternalID(), notice.From, notice.To, notice.Event, notice.Actor.Role,
		notice.At.Format("02/01/2006 15:04"))
	if notice.Justification != "" {
		line += " Justificativa: " + notice.Justification
	}
	return line
}

// alimentacaoReportable covers the escola, DRE and informative families.
type alimentacaoReportable struct{}

func (alimentacaoReportable) Headers() []string {
	return append(append([]string(nil), baseHeaders...), "Escola", "DRE", "Lote")
}

func (alimentacaoReportable) Row(req models.Request) map[string]string {
	row := baseRow(req)
	row["Escola"] = optional(req.EscolaID)
	row["DRE"] = optional(req.DREID)
	row["Lote"] = optional(req.LoteID)
	return row
}

func (alimentacaoReportable) Subject(req models.Request) string {
	return fmt.Sprintf("[SIGPAE] %s %s para %s", strings.ReplaceAll(req.Variant, "_", " "), req.ExternalID(),
		req.DataInicial.Format("02/01/2006"))
}

func (alimentacaoReportable) Message(notice TransitionNotice) string {
	return transitionLine(notice)
}

type dietaReportable struct{}

func (dietaReportable) Headers() []string {
	return append(append([]string(nil), baseHeaders...), "Aluno", "Escola")
}

func (dietaReportable) Row(req models.Request) map[string]string {
	row := baseRow(req)
	row["Aluno"] = detail(req, "nome_aluno")
	row["Escola"] = optional(req.EscolaID)
	return row
}

func (dietaReportable) Subject(req models.Request) string {
	if aluno := detail(req, "nome_aluno"); aluno != "" {
		return fmt.Sprintf("[SIGPAE] Dieta especial %s - %s", req.ExternalID(), aluno)
	}
	return fmt.Sprintf("[SIGPAE] Dieta especial %s", req.ExternalID())
}

func (dietaReportable) Message(notice TransitionNotice) string {
	return transitionLine(notice)
}

type produtoReportable struct{}

func (produtoReportable) Headers() []string {
	return append(append([]string(nil), baseHeaders...), "Produto", "Terceirizada")
}

func (produtoReportable) Row(req models.Request) map[string]string {
	row := baseRow(req)
	row["Produto"] = detail(req, "nome_produto")
	row["Terceirizada"] = optional(req.TerceirizadaID)
	return row
}

func (produtoReportable) Subject(req models.Request) string {
	return fmt.Sprintf("[SIGPAE] Produto %s %s", detail(req, "nome_produto"), req.ExternalID())
}

func (produtoReportable) Message(notice TransitionNotice) string {
	return transitionLine(notice)
}

type logisticaReportable struct{}

func (logisticaReportable) Headers() []string {
	return append(append([]string(nil), baseHeaders...), "Número", "Distribuidor")
}

func (logisticaReportable) Row(req models.Request) map[string]string {
	row := baseRow(req)
	row["Número"] = detail(req, "numero")
	row["Distribuidor"] = detail(req, "distribuidor")
	return row
}

func (logisticaReportable) Subject(req models.Request) string {
	if n := detail(req, "numero"); n != "" {
		return fmt.Sprintf("[SIGPAE] Logística nº %s", n)
	}
	return fmt.Sprintf("[SIGPAE] Logística %s", req.ExternalID())
}

func (logisticaReportable) Message(notice TransitionNotice) string {
	return transitionLine(notice)
}

// ReportableFor returns the adapter of a family, falling back to the
// alimentação layout for unknown families.
func ReportableFor(family workflow.Family) Reportable {
	switch family {
	case workflow.FamilyDietaEspecial:
		return dietaReportable{}
	case workflow.FamilyHomologacao, workflow.FamilyReclamacao:
		return produtoReportable{}
	case workflow.FamilyLogistica:
		return logisticaReportable{}
	default:
		return alimentacaoReportable{}
	}
}
