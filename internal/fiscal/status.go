package fiscal

// Status bits returned after ENQ. Bit 3 FSK (fiscal vs training mode),
// bit 2 CMD (last command ok), bit 1 PAR (receipt in progress),
// bit 0 TRF (transaction in progress).
type Status struct {
	Fiscal                bool `json:"fiscal"`
	LastCommandOK         bool `json:"last_command_ok"`
	ReceiptOpen           bool `json:"receipt_open"`
	TransactionInProgress bool `json:"transaction_in_progress"`
	PaperOut              bool `json:"paper_out"`
	MechanismError        bool `json:"mechanism_error"`
}

const (
	statusBitTRF = 1 << 0
	statusBitPAR = 1 << 1
	statusBitCMD = 1 << 2
	statusBitFSK = 1 << 3

	// extended bits reported by the Deon alongside the classic four
	statusBitPaper     = 1 << 4
	statusBitMechanism = 1 << 5
)

// ParseStatusByte decodes the ENQ response.
func ParseStatusByte(b byte) Status {
	return Status{
		Fiscal:                b&statusBitFSK != 0,
		LastCommandOK:         b&statusBitCMD != 0,
		ReceiptOpen:           b&statusBitPAR != 0,
		TransactionInProgress: b&statusBitTRF != 0,
		PaperOut:              b&statusBitPaper != 0,
		MechanismError:        b&statusBitMechanism != 0,
	}
}
