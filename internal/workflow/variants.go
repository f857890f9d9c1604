package workflow

import (
	"github.com/noah-isme/sigpae-api/internal/models"
)

// Variant discriminators.
const (
	VariantAlteracaoCardapio           = "alteracao_cardapio"
	VariantAlteracaoCardapioCEI        = "alteracao_cardapio_cei"
	VariantInversaoDiaCardapio         = "inversao_dia_cardapio"
	VariantInclusaoAlimentacao         = "inclusao_alimentacao"
	VariantInclusaoAlimentacaoContinua = "inclusao_alimentacao_continua"
	VariantInclusaoAlimentacaoCEI      = "inclusao_alimentacao_cei"
	VariantKitLancheAvulsa             = "kit_lanche_avulsa"
	VariantKitLancheCEI                = "kit_lanche_cei"
	VariantKitLancheUnificada          = "kit_lanche_unificada"
	VariantSuspensaoAlimentacao        = "suspensao_alimentacao"
	VariantSuspensaoAlimentacaoCEI     = "suspensao_alimentacao_cei"
	VariantDietaEspecial               = "dieta_especial"
	VariantHomologacaoProduto          = "homologacao_produto"
	VariantReclamacaoProduto           = "reclamacao_produto"
	VariantSolicitacaoRemessa          = "solicitacao_remessa"
	VariantSolicitacaoAlteracao        = "solicitacao_alteracao"
	VariantGuiaRemessa                 = "guia_remessa"
)

// States shared by the escola, DRE and informative families.
const (
	StateRascunho                 State = "rascunho"
	StateAValidar                 State = "a_validar"
	StateValidado                 State = "validado"
	StateEscolaRevisar            State = "escola_revisar"
	StateNaoValidado              State = "nao_validado"
	StateAAutorizar               State = "a_autorizar"
	StateDRERevisar               State = "dre_revisar"
	StateAutorizado               State = "autorizado"
	StateQuestionado              State = "questionado"
	StateRespondido               State = "respondido"
	StateNegado                   State = "negado"
	StateCiente                   State = "ciente"
	StateInformado                State = "informado"
	StateCanceladoPelaEscola      State = "cancelado_pela_escola"
	StateCanceladoPelaDRE         State = "cancelado_pela_dre"
	StateCanceladoAutomaticamente State = "cancelado_automaticamente"
)

// Special diet states.
const (
	StateInativacaoSolicitada State = "inativacao_solicitada"
	StateInativada            State = "inativada"
	StateInativacaoNegada     State = "inativacao_negada"
	StateInativacaoCiente     State = "inativacao_ciente"
	StateTerminada            State = "terminada"
)

// Product homologation and complaint states.
const (
	StatePendenteHomologacao       State = "pendente_homologacao"
	StateHomologado                State = "homologado"
	StateNaoHomologado             State = "nao_homologado"
	StateAnaliseSensorial          State = "analise_sensorial"
	StateSuspenso                  State = "suspenso"
	StateReclamado                 State = "reclamado"
	StateCanceladoPelaTerceirizada State = "cancelado_pela_terceirizada"

	StateAguardandoAvaliacao        State = "aguardando_avaliacao"
	StateAguardandoRespostaTerc     State = "aguardando_resposta_terceirizada"
	StateRespondidoTerceirizada     State = "respondido_terceirizada"
	StateQuestionadoUE              State = "questionado_ue"
	StateAguardandoAnaliseSensorial State = "aguardando_analise_sensorial"
	StateAnaliseSensorialRespondida State = "analise_sensorial_respondida"
	StateReclamacaoRecusada         State = "recusada"
	StateReclamacaoRespondida       State = "respondida"
)

// Logistics states.
const (
	StateAguardandoEnvio     State = "aguardando_envio"
	StateEnviada             State = "enviada"
	StateConfirmada          State = "confirmada"
	StateAlteracaoSolicitada State = "alteracao_solicitada"
	StateAlterada            State = "alterada"
	StateCancelada           State = "cancelada"
	StateEmAnalise           State = "em_analise"
	StateAceita              State = "aceita"
	StateNegada              State = "negada"
	StatePendenteConferencia State = "pendente_de_conferencia"
	StateRecebida            State = "recebida"
	StateRecebimentoParcial  State = "recebimento_parcial"
	StateNaoRecebida         State = "nao_recebida"
	StateReposicaoRegistrada State = "reposicao_registrada"
)

// Events.
const (
	EventIniciar                            Event = "iniciar"
	EventInformar                           Event = "informar"
	EventDREValida                          Event = "dre_valida"
	EventDREPedeRevisao                     Event = "dre_pede_revisao"
	EventDRENaoValida                       Event = "dre_nao_valida"
	EventEscolaRevisa                       Event = "escola_revisa"
	EventCODAEAutoriza                      Event = "codae_autoriza"
	EventCODAEQuestiona                     Event = "codae_questiona"
	EventCODAEAutorizaQuestionamento        Event = "codae_autoriza_questionamento"
	EventCODAENega                          Event = "codae_nega"
	EventCODAENegaQuestionamento            Event = "codae_nega_questionamento"
	EventCODAEPedeRevisao                   Event = "codae_pede_revisao"
	EventDRERevisa                          Event = "dre_revisa"
	EventTerceirizadaRespondeQuestionamento Event = "terceirizada_responde_questionamento"
	EventTerceirizadaTomaCiencia            Event = "terceirizada_toma_ciencia"
	EventCancelar                           Event = "cancelar"
	EventCancelarAutomaticamente            Event = "cancelar_automaticamente"

	EventEscolaSolicitaInativacao          Event = "escola_solicita_inativacao"
	EventCODAEAutorizaInativacao           Event = "codae_autoriza_inativacao"
	EventCODAENegaInativacao               Event = "codae_nega_inativacao"
	EventTerceirizadaTomaCienciaInativacao Event = "terceirizada_toma_ciencia_inativacao"
	EventTerminarAutomaticamente           Event = "terminar_automaticamente"

	EventCODAEHomologa                        Event = "codae_homologa"
	EventCODAENaoHomologa                     Event = "codae_nao_homologa"
	EventCODAEPedeAnaliseSensorial            Event = "codae_pede_analise_sensorial"
	EventTerceirizadaRespondeAnaliseSensorial Event = "terceirizada_responde_analise_sensorial"
	EventCODAESuspende                        Event = "codae_suspende"
	EventCODAEAtiva                           Event = "codae_ativa"
	EventReclamacaoRegistrada                 Event = "reclamacao_registrada"
	EventCODAEAutorizaReclamacao              Event = "codae_autoriza_reclamacao"
	EventCODAERecusaReclamacao                Event = "codae_recusa_reclamacao"

	EventCODAEQuestionaTerceirizada Event = "codae_questiona_terceirizada"
	EventTerceirizadaResponde       Event = "terceirizada_responde"
	EventCODAEQuestionaUE           Event = "codae_questiona_ue"
	EventUEResponde                 Event = "ue_responde"
	EventCODAEAceita                Event = "codae_aceita"
	EventCODAERecusa                Event = "codae_recusa"
	EventCODAEResponde              Event = "codae_responde"

	EventDILOGEnvia                    Event = "dilog_envia"
	EventDistribuidorConfirma          Event = "distribuidor_confirma"
	EventDistribuidorSolicitaAlteracao Event = "distribuidor_solicita_alteracao"
	EventDILOGAceitaAlteracao          Event = "dilog_aceita_alteracao"
	EventDILOGNegaAlteracao            Event = "dilog_nega_alteracao"
	EventDILOGAceita                   Event = "dilog_aceita"
	EventDILOGNega                     Event = "dilog_nega"
	EventEscolaRecebe                  Event = "escola_recebe"
	EventEscolaRecebeParcial           Event = "escola_recebe_parcial"
	EventEscolaNaoRecebe               Event = "escola_nao_recebe"
	EventDistribuidorRegistraReposicao Event = "distribuidor_registra_reposicao"
)

// VariantParams carries the thresholds the variants are built with.
type VariantParams struct {
	AdvanceNoticeDays           int
	ContinuousAdvanceNoticeDays int
	CancellationNoticeDays      int
	LastMinuteDays              int
	AlterationNoticeDays        int
	AllowDecemberRollover       bool
}

// DefaultVariantParams returns the thresholds used by the school network.
func DefaultVariantParams() VariantParams {
	return VariantParams{
		AdvanceNoticeDays:           2,
		ContinuousAdvanceNoticeDays: 5,
		CancellationNoticeDays:      2,
		LastMinuteDays:              DefaultNearLimitDays,
		AlterationNoticeDays:        3,
		AllowDecemberRollover:       true,
	}
}

type escolaVariant struct {
	name          string
	advanceNotice int
	sameYear      bool
	duplicates    bool
}

// DefaultRegistry builds every known variant with params.
func DefaultRegistry(params VariantParams) (*Registry, error) {
	escolaVariants := []escolaVariant{
		{name: VariantAlteracaoCardapio, advanceNotice: params.AdvanceNoticeDays, duplicates: true},
		{name: VariantAlteracaoCardapioCEI, advanceNotice: params.AdvanceNoticeDays, duplicates: true},
		{name: VariantInversaoDiaCardapio, advanceNotice: params.AdvanceNoticeDays, sameYear: true, duplicates: true},
		{name: VariantInclusaoAlimentacao, advanceNotice: params.AdvanceNoticeDays, duplicates: true},
		{name: VariantInclusaoAlimentacaoContinua, advanceNotice: params.ContinuousAdvanceNoticeDays, duplicates: true},
		{name: VariantInclusaoAlimentacaoCEI, advanceNotice: params.AdvanceNoticeDays, duplicates: true},
		{name: VariantKitLancheAvulsa, advanceNotice: params.AdvanceNoticeDays, sameYear: true},
		{name: VariantKitLancheCEI, advanceNotice: params.AdvanceNoticeDays, sameYear: true},
	}

	defs := make([]*Definition, 0, 17)
	for _, v := range escolaVariants {
		def, err := escolaFlow(v, params)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	builders := []func(VariantParams) (*Definition, error){
		func(p VariantParams) (*Definition, error) { return dreFlow(VariantKitLancheUnificada, p) },
		func(p VariantParams) (*Definition, error) { return informativoFlow(VariantSuspensaoAlimentacao, p) },
		func(p VariantParams) (*Definition, error) { return informativoFlow(VariantSuspensaoAlimentacaoCEI, p) },
		dietaEspecialFlow,
		homologacaoProdutoFlow,
		reclamacaoProdutoFlow,
		solicitacaoRemessaFlow,
		solicitacaoAlteracaoFlow,
		guiaRemessaFlow,
	}
	for _, build := range builders {
		def, err := build(params)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return NewRegistry(defs...)
}

func escolaFlow(v escolaVariant, p VariantParams) (*Definition, error) {
	creation := []Guard{NotInPast{}, MinimumAdvanceNotice{Days: v.advanceNotice}}
	if v.sameYear {
		creation = append(creation, SameCalendarYear{AllowDecemberRollover: p.AllowDecemberRollover})
	}
	if v.duplicates {
		creation = append(creation, NoOverlappingActiveDuplicate{IgnoreDrafts: true})
	}
	lastMinute := LastMinuteAuthorizationBlocked{Days: p.LastMinuteDays}

	return NewBuilder(v.name, FamilyEscola).
		States(StateRascunho, StateAValidar, StateEscolaRevisar, StateValidado, StateNaoValidado,
			StateQuestionado, StateRespondido, StateAutorizado, StateNegado, StateCiente,
			StateCanceladoPelaEscola, StateCanceladoAutomaticamente).
		Initial(StateRascunho).
		Terminal(StateNaoValidado, StateNegado, StateCiente, StateCanceladoPelaEscola, StateCanceladoAutomaticamente).
		CreatedBy(models.RoleEscola).
		CreationGuards(creation...).
		Edge(StateRascunho, EventIniciar, StateAValidar, by(models.RoleEscola), NotInPast{}).
		Edge(StateAValidar, EventDREValida, StateValidado, by(models.RoleDRE)).
		Edge(StateAValidar, EventDREPedeRevisao, StateEscolaRevisar, by(models.RoleDRE)).
		Edge(StateAValidar, EventDRENaoValida, StateNaoValidado, by(models.RoleDRE), RequireJustification{}).
		Edge(StateEscolaRevisar, EventEscolaRevisa, StateAValidar, by(models.RoleEscola)).
		Edge(StateValidado, EventCODAEAutoriza, StateAutorizado, by(models.RoleCODAE), lastMinute).
		Edge(StateValidado, EventCODAEQuestiona, StateQuestionado, by(models.RoleCODAE)).
		Edge(StateValidado, EventCODAEAutorizaQuestionamento, StateAutorizado, by(models.RoleCODAE), lastMinute).
		EdgeFrom([]State{StateValidado, StateQuestionado}, EventCODAENega, StateNegado, by(models.RoleCODAE), RequireJustification{}).
		Edge(StateQuestionado, EventTerceirizadaRespondeQuestionamento, StateRespondido, by(models.RoleTerceirizada), RequireAnswer{}).
		Edge(StateRespondido, EventCODAEAutorizaQuestionamento, StateAutorizado, by(models.RoleCODAE)).
		Edge(StateRespondido, EventCODAENegaQuestionamento, StateNegado, by(models.RoleCODAE), RequireJustification{}).
		Edge(StateAutorizado, EventTerceirizadaTomaCiencia, StateCiente, by(models.RoleTerceirizada)).
		EdgeFrom([]State{StateAValidar, StateEscolaRevisar, StateValidado, StateQuestionado, StateRespondido},
			EventCancelarAutomaticamente, StateCanceladoAutomaticamente, by(models.RoleSistema), DateElapsed{}).
		AlwaysAvailable(EventCancelar, StateCanceladoPelaEscola, by(models.RoleEscola), []State{StateCiente},
			MinimumCancellationNotice{Days: p.CancellationNoticeDays}, RequireJustification{}).
		Build()
}

func dreFlow(variant string, p VariantParams) (*Definition, error) {
	lastMinute := LastMinuteAuthorizationBlocked{Days: p.LastMinuteDays}
	return NewBuilder(variant, FamilyDRE).
		States(StateRascunho, StateAAutorizar, StateDRERevisar, StateQuestionado, StateRespondido,
			StateAutorizado, StateNegado, StateCiente, StateCanceladoPelaDRE, StateCanceladoAutomaticamente).
		Initial(StateRascunho).
		Terminal(StateNegado, StateCiente, StateCanceladoPelaDRE, StateCanceladoAutomaticamente).
		CreatedBy(models.RoleDRE).
		CreationGuards(NotInPast{}, MinimumAdvanceNotice{Days: p.AdvanceNoticeDays},
			SameCalendarYear{AllowDecemberRollover: p.AllowDecemberRollover}).
		Edge(StateRascunho, EventIniciar, StateAAutorizar, by(models.RoleDRE), NotInPast{}).
		Edge(StateAAutorizar, EventCODAEAutoriza, StateAutorizado, by(models.RoleCODAE), lastMinute).
		Edge(StateAAutorizar, EventCODAEQuestiona, StateQuestionado, by(models.RoleCODAE)).
		Edge(StateAAutorizar, EventCODAEPedeRevisao, StateDRERevisar, by(models.RoleCODAE)).
		Edge(StateDRERevisar, EventDRERevisa, StateAAutorizar, by(models.RoleDRE)).
		EdgeFrom([]State{StateAAutorizar, StateQuestionado}, EventCODAENega, StateNegado, by(models.RoleCODAE), RequireJustification{}).
		Edge(StateQuestionado, EventTerceirizadaRespondeQuestionamento, StateRespondido, by(models.RoleTerceirizada), RequireAnswer{}).
		Edge(StateRespondido, EventCODAEAutorizaQuestionamento, StateAutorizado, by(models.RoleCODAE)).
		Edge(StateRespondido, EventCODAENegaQuestionamento, StateNegado, by(models.RoleCODAE), RequireJustification{}).
		Edge(StateAutorizado, EventTerceirizadaTomaCiencia, StateCiente, by(models.RoleTerceirizada)).
		EdgeFrom([]State{StateAAutorizar, StateDRERevisar, StateQuestionado, StateRespondido},
			EventCancelarAutomaticamente, StateCanceladoAutomaticamente, by(models.RoleSistema), DateElapsed{}).
		AlwaysAvailable(EventCancelar, StateCanceladoPelaDRE, by(models.RoleDRE), []State{StateCiente},
			MinimumCancellationNotice{Days: p.CancellationNoticeDays}, RequireJustification{}).
		Build()
}

func informativoFlow(variant string, p VariantParams) (*Definition, error) {
	return NewBuilder(variant, FamilyInformativo).
		States(StateRascunho, StateInformado, StateCiente, StateCanceladoPelaEscola).
		Initial(StateRascunho).
		Terminal(StateCiente, StateCanceladoPelaEscola).
		CreatedBy(models.RoleEscola).
		CreationGuards(NotInPast{}, SameCalendarYear{AllowDecemberRollover: p.AllowDecemberRollover},
			NoOverlappingActiveDuplicate{IgnoreDrafts: true}).
		Edge(StateRascunho, EventInformar, StateInformado, by(models.RoleEscola), NotInPast{}).
		Edge(StateInformado, EventTerceirizadaTomaCiencia, StateCiente, by(models.RoleTerceirizada)).
		AlwaysAvailable(EventCancelar, StateCanceladoPelaEscola, by(models.RoleEscola), []State{StateCiente},
			MinimumCancellationNotice{Days: p.CancellationNoticeDays}, RequireJustification{}).
		Build()
}

func dietaEspecialFlow(VariantParams) (*Definition, error) {
	return NewBuilder(VariantDietaEspecial, FamilyDietaEspecial).
		States(StateRascunho, StateAAutorizar, StateAutorizado, StateNegado, StateCiente,
			StateInativacaoSolicitada, StateInativada, StateInativacaoNegada, StateInativacaoCiente,
			StateCanceladoPelaEscola, StateTerminada).
		Initial(StateRascunho).
		Terminal(StateNegado, StateInativacaoCiente, StateCanceladoPelaEscola, StateTerminada).
		CreatedBy(models.RoleEscola).
		CreationGuards(NoOverlappingActiveDuplicate{
			Message:      "Já existe uma dieta especial ativa para este aluno no período",
			IgnoreDrafts: true,
		}).
		Edge(StateRascunho, EventIniciar, StateAAutorizar, by(models.RoleEscola)).
		Edge(StateAAutorizar, EventCODAEAutoriza, StateAutorizado, by(models.RoleCODAE)).
		Edge(StateAAutorizar, EventCODAENega, StateNegado, by(models.RoleCODAE), RequireJustification{}).
		EdgeFrom([]State{StateRascunho, StateAAutorizar}, EventCancelar, StateCanceladoPelaEscola, by(models.RoleEscola), RequireJustification{}).
		Edge(StateAutorizado, EventTerceirizadaTomaCiencia, StateCiente, by(models.RoleTerceirizada)).
		EdgeFrom([]State{StateAutorizado, StateCiente}, EventEscolaSolicitaInativacao, StateInativacaoSolicitada, by(models.RoleEscola), RequireJustification{}).
		Edge(StateInativacaoSolicitada, EventCODAEAutorizaInativacao, StateInativada, by(models.RoleCODAE)).
		Edge(StateInativacaoSolicitada, EventCODAENegaInativacao, StateInativacaoNegada, by(models.RoleCODAE), RequireJustification{}).
		Edge(StateInativada, EventTerceirizadaTomaCienciaInativacao, StateInativacaoCiente, by(models.RoleTerceirizada)).
		EdgeFrom([]State{StateAutorizado, StateCiente, StateInativacaoNegada},
			EventTerminarAutomaticamente, StateTerminada, by(models.RoleSistema), DateElapsed{UseFinalDate: true}).
		Build()
}

func homologacaoProdutoFlow(VariantParams) (*Definition, error) {
	return NewBuilder(VariantHomologacaoProduto, FamilyHomologacao).
		States(StateRascunho, StatePendenteHomologacao, StateQuestionado, StateAnaliseSensorial,
			StateHomologado, StateNaoHomologado, StateSuspenso, StateReclamado, StateCanceladoPelaTerceirizada).
		Initial(StateRascunho).
		Terminal(StateNaoHomologado, StateCanceladoPelaTerceirizada).
		CreatedBy(models.RoleTerceirizada).
		Edge(StateRascunho, EventIniciar, StatePendenteHomologacao, by(models.RoleTerceirizada)).
		Edge(StatePendenteHomologacao, EventCODAEHomologa, StateHomologado, by(models.RoleCODAE)).
		Edge(StatePendenteHomologacao, EventCODAENaoHomologa, StateNaoHomologado, by(models.RoleCODAE), RequireJustification{}).
		Edge(StatePendenteHomologacao, EventCODAEQuestiona, StateQuestionado, by(models.RoleCODAE), RequireJustification{}).
		Edge(StatePendenteHomologacao, EventCODAEPedeAnaliseSensorial, StateAnaliseSensorial, by(models.RoleCODAE)).
		Edge(StateQuestionado, EventTerceirizadaRespondeQuestionamento, StatePendenteHomologacao, by(models.RoleTerceirizada), RequireJustification{}).
		Edge(StateAnaliseSensorial, EventTerceirizadaRespondeAnaliseSensorial, StatePendenteHomologacao, by(models.RoleTerceirizada)).
		Edge(StateHomologado, EventCODAESuspende, StateSuspenso, by(models.RoleCODAE), RequireJustification{}).
		Edge(StateSuspenso, EventCODAEAtiva, StateHomologado, by(models.RoleCODAE)).
		Edge(StateHomologado, EventReclamacaoRegistrada, StateReclamado, by(models.RoleEscola, models.RoleNutrisupervisor)).
		Edge(StateReclamado, EventCODAEAutorizaReclamacao, StateSuspenso, by(models.RoleCODAE)).
		Edge(StateReclamado, EventCODAERecusaReclamacao, StateHomologado, by(models.RoleCODAE)).
		EdgeFrom([]State{StateRascunho, StatePendenteHomologacao, StateQuestionado, StateAnaliseSensorial},
			EventCancelar, StateCanceladoPelaTerceirizada, by(models.RoleTerceirizada), RequireJustification{}).
		Build()
}

func reclamacaoProdutoFlow(VariantParams) (*Definition, error) {
	deciding := []State{StateAguardandoAvaliacao, StateRespondidoTerceirizada, StateAnaliseSensorialRespondida}
	return NewBuilder(VariantReclamacaoProduto, FamilyReclamacao).
		States(StateRascunho, StateAguardandoAvaliacao, StateAguardandoRespostaTerc, StateRespondidoTerceirizada,
			StateQuestionadoUE, StateAguardandoAnaliseSensorial, StateAnaliseSensorialRespondida,
			StateAceita, StateReclamacaoRecusada, StateReclamacaoRespondida).
		Initial(StateRascunho).
		Terminal(StateAceita, StateReclamacaoRecusada, StateReclamacaoRespondida).
		CreatedBy(models.RoleEscola, models.RoleNutrisupervisor).
		Edge(StateRascunho, EventIniciar, StateAguardandoAvaliacao, by(models.RoleEscola, models.RoleNutrisupervisor)).
		EdgeFrom(deciding, EventCODAEQuestionaTerceirizada, StateAguardandoRespostaTerc, by(models.RoleCODAE), RequireJustification{}).
		Edge(StateAguardandoRespostaTerc, EventTerceirizadaResponde, StateRespondidoTerceirizada, by(models.RoleTerceirizada), RequireJustification{}).
		EdgeFrom(deciding, EventCODAEQuestionaUE, StateQuestionadoUE, by(models.RoleCODAE), RequireJustification{}).
		Edge(StateQuestionadoUE, EventUEResponde, StateAguardandoAvaliacao, by(models.RoleEscola, models.RoleNutrisupervisor), RequireJustification{}).
		EdgeFrom(deciding, EventCODAEPedeAnaliseSensorial, StateAguardandoAnaliseSensorial, by(models.RoleCODAE)).
		Edge(StateAguardandoAnaliseSensorial, EventTerceirizadaRespondeAnaliseSensorial, StateAnaliseSensorialRespondida, by(models.RoleTerceirizada)).
		EdgeFrom(deciding, EventCODAEAceita, StateAceita, by(models.RoleCODAE), RequireJustification{}).
		EdgeFrom(deciding, EventCODAERecusa, StateReclamacaoRecusada, by(models.RoleCODAE), RequireJustification{}).
		EdgeFrom(deciding, EventCODAEResponde, StateReclamacaoRespondida, by(models.RoleCODAE), RequireJustification{}).
		Build()
}

func solicitacaoRemessaFlow(VariantParams) (*Definition, error) {
	return NewBuilder(VariantSolicitacaoRemessa, FamilyLogistica).
		States(StateAguardandoEnvio, StateEnviada, StateAlteracaoSolicitada, StateConfirmada, StateAlterada, StateCancelada).
		Initial(StateAguardandoEnvio).
		Terminal(StateConfirmada, StateAlterada, StateCancelada).
		CreatedBy(models.RoleDILOG, models.RoleSistema).
		Edge(StateAguardandoEnvio, EventDILOGEnvia, StateEnviada, by(models.RoleDILOG)).
		Edge(StateEnviada, EventDistribuidorConfirma, StateConfirmada, by(models.RoleDistribuidor)).
		Edge(StateEnviada, EventDistribuidorSolicitaAlteracao, StateAlteracaoSolicitada, by(models.RoleDistribuidor), RequireJustification{}).
		Edge(StateAlteracaoSolicitada, EventDILOGAceitaAlteracao, StateAlterada, by(models.RoleDILOG)).
		Edge(StateAlteracaoSolicitada, EventDILOGNegaAlteracao, StateConfirmada, by(models.RoleDILOG), RequireJustification{}).
		AlwaysAvailable(EventCancelar, StateCancelada, by(models.RoleDILOG, models.RoleSistema), []State{StateConfirmada},
			RequireJustification{}).
		Build()
}

func solicitacaoAlteracaoFlow(p VariantParams) (*Definition, error) {
	return NewBuilder(VariantSolicitacaoAlteracao, FamilyLogistica).
		States(StateEmAnalise, StateAceita, StateNegada).
		Initial(StateEmAnalise).
		Terminal(StateAceita, StateNegada).
		CreatedBy(models.RoleDistribuidor).
		CreationGuards(NotInPast{}, MinimumAdvanceNotice{Days: p.AlterationNoticeDays}).
		Edge(StateEmAnalise, EventDILOGAceita, StateAceita, by(models.RoleDILOG)).
		Edge(StateEmAnalise, EventDILOGNega, StateNegada, by(models.RoleDILOG), RequireJustification{}).
		Build()
}

func guiaRemessaFlow(VariantParams) (*Definition, error) {
	return NewBuilder(VariantGuiaRemessa, FamilyLogistica).
		States(StatePendenteConferencia, StateRecebida, StateRecebimentoParcial, StateNaoRecebida,
			StateReposicaoRegistrada, StateCancelada).
		Initial(StatePendenteConferencia).
		Terminal(StateRecebida, StateReposicaoRegistrada, StateCancelada).
		CreatedBy(models.RoleDILOG, models.RoleSistema).
		Edge(StatePendenteConferencia, EventEscolaRecebe, StateRecebida, by(models.RoleEscola)).
		Edge(StatePendenteConferencia, EventEscolaRecebeParcial, StateRecebimentoParcial, by(models.RoleEscola), RequireJustification{}).
		Edge(StatePendenteConferencia, EventEscolaNaoRecebe, StateNaoRecebida, by(models.RoleEscola), RequireJustification{}).
		EdgeFrom([]State{StateRecebimentoParcial, StateNaoRecebida}, EventDistribuidorRegistraReposicao, StateReposicaoRegistrada, by(models.RoleDistribuidor)).
		Edge(StatePendenteConferencia, EventCancelar, StateCancelada, by(models.RoleDILOG, models.RoleSistema), RequireJustification{}).
		Build()
}
