package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codegraph/codegraph-go/internal/identifier"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check an entity stream without writing to the graph",
	Long: `Decode an NDJSON entity stream and verify that every declaration can be
assigned a stable ID. Reports problems per compilation unit and exits
non-zero if any are found.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	units, err := readUnits(args)
	if err != nil {
		return err
	}

	var classes, methods, fields, problems int
	for _, unit := range units {
		for _, class := range unit.Classes {
			classID, err := identifier.ClassID(unit.Package, class.Name)
			if err != nil {
				problems++
				fmt.Printf("%s: %v\n", unit.FilePath, err)
				continue
			}
			classes++

			for _, method := range class.Methods {
				if _, err := identifier.MethodID(classID, method.Name, method.ParamTypes); err != nil {
					problems++
					fmt.Printf("%s: %s: %v\n", unit.FilePath, class.Name, err)
					continue
				}
				methods++
			}
			for _, field := range class.Fields {
				if _, err := identifier.FieldID(classID, field.Name, field.DeclaredType); err != nil {
					problems++
					fmt.Printf("%s: %s: %v\n", unit.FilePath, class.Name, err)
					continue
				}
				fields++
			}
		}
	}

	fmt.Printf("Units:   %d\n", len(units))
	fmt.Printf("Classes: %d\nMethods: %d\nFields:  %d\n", classes, methods, fields)

	if problems > 0 {
		return fmt.Errorf("%d declarations failed validation", problems)
	}
	fmt.Println("OK")
	return nil
}
