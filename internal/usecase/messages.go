package usecase

// User-facing texts. Kept accent-free so they survive any intermediate
// encoding between here and the device.
const (
	msgYourTurn           = "Agora e a sua vez! Um atendente vai falar com voce em seguida."
	msgQueuePositionFmt   = "Voce esta na fila do atendimento. Sua posicao atual e %d."
	msgQueueExpired       = "Sua fila expirou por inatividade. Digite *menu* para voltar."
	msgAttendanceFinished = "Seu atendimento foi finalizado. Se precisar de algo, digite *menu*."
	msgQueueClosed        = "A fila deste atendimento foi encerrada. Digite *menu* para voltar ao inicio."
)
