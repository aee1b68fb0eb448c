package program

import (
	"crypto/ed25519"

	"github.com/sirupsen/logrus"

	"github.com/apologystake/stake-server/pkg/apology/ledger"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
)

// Processor executes the apology stake program's instructions on a ledger
type Processor struct {
	log *logrus.Entry
}

func New() *Processor {
	return &Processor{
		log: logrus.StandardLogger().WithField("type", "apology/program"),
	}
}

// Register adds a new Processor to the ledger
func Register(l *ledger.Ledger) error {
	return l.RegisterProgram(New())
}

func (p *Processor) ProgramID() ed25519.PublicKey {
	return apologystake.PROGRAM_ID
}

func (p *Processor) Process(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	instructionType := apologystake.GetInstructionType(data)

	var err error
	switch instructionType {
	case apologystake.InstructionTypeInitializeApology:
		ic.Log("Instruction: InitializeApology")
		err = p.initialize(ic, accounts, data)
	case apologystake.InstructionTypeReleaseStake:
		ic.Log("Instruction: ReleaseStake")
		err = p.complete(ic, accounts, data, apologystake.ResolutionReleased)
	case apologystake.InstructionTypeClaimStake:
		ic.Log("Instruction: ClaimStake")
		err = p.complete(ic, accounts, data, apologystake.ResolutionClaimed)
	default:
		err = apologystake.ErrInvalidInstructionData
	}

	if err != nil {
		p.log.WithError(err).WithField("instruction", instructionType.String()).Debug("instruction failed")
		if programErr, ok := err.(*apologystake.ProgramError); ok {
			ic.Log("AnchorError occurred. Error Code: %s. Error Number: %d. Error Message: %s.", programErr.Name(), int(programErr.Code()), programErr.Error())
		}
	}
	return err
}
