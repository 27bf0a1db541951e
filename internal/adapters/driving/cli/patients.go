package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var patientsCmd = &cobra.Command{
	Use:   "patients",
	Short: "List discharged patients",
	Args:  cobra.NoArgs,
	RunE:  runPatientsList,
}

var patientsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a patient's discharge report",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPatientsShow,
}

func init() {
	patientsCmd.AddCommand(patientsShowCmd)
	rootCmd.AddCommand(patientsCmd)
}

var errPatientsNotConfigured = errors.New("patient records not configured (set patients_file)")

func runPatientsList(cmd *cobra.Command, _ []string) error {
	if patientStore == nil {
		return errPatientsNotConfigured
	}

	patients, err := patientStore.List(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("listing patients failed: %w", err)
	}
	if len(patients) == 0 {
		cmd.Println("No patients.")
		return nil
	}

	for _, p := range patients {
		cmd.Printf("%-8s %-24s %-12s %s\n", p.PatientID, p.Name, p.DischargeDate, p.PrimaryDiagnosis)
	}
	return nil
}

func runPatientsShow(cmd *cobra.Command, args []string) error {
	if patientStore == nil {
		return errPatientsNotConfigured
	}

	patient, err := patientStore.FindByName(commandContext(cmd), strings.Join(args, " "))
	if err != nil {
		return err
	}
	cmd.Print(patient.Report())
	return nil
}
