package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/mmynk/meterbill/internal/app"
	"github.com/mmynk/meterbill/internal/models"
)

const dateLayout = time.DateOnly

func customersCommand() *cli.Command {
	return &cli.Command{
		Name:  "customers",
		Usage: "list and maintain customers",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list customers by name",
				Action: withState(listCustomers),
			},
			{
				Name:  "add",
				Usage: "register a customer",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "address"},
					&cli.StringFlag{Name: "meter", Required: true, Usage: "meter number, unique per customer"},
				},
				Action: withState(func(c *cli.Context, state *app.State) error {
					customer, err := state.AddCustomer(c.Context, models.CustomerInput{
						Name:        c.String("name"),
						Address:     c.String("address"),
						MeterNumber: c.String("meter"),
					})
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, customer.ID)
					return nil
				}),
			},
			{
				Name:      "update",
				Usage:     "change name, address or meter number",
				ArgsUsage: "<customer-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "address"},
					&cli.StringFlag{Name: "meter"},
				},
				Action: withState(func(c *cli.Context, state *app.State) error {
					id, err := requireArg(c, 0, "customer-id")
					if err != nil {
						return err
					}
					customer, ok := state.FindCustomer(id)
					if !ok {
						return models.NotFound("customer", id)
					}
					if c.IsSet("name") {
						customer.Name = c.String("name")
					}
					if c.IsSet("address") {
						customer.Address = c.String("address")
					}
					if c.IsSet("meter") {
						customer.MeterNumber = c.String("meter")
					}
					_, err = state.UpdateCustomer(c.Context, customer)
					return err
				}),
			},
			{
				Name:      "remove",
				Usage:     "delete a customer and all of its bills",
				ArgsUsage: "<customer-id>",
				Action: withState(func(c *cli.Context, state *app.State) error {
					id, err := requireArg(c, 0, "customer-id")
					if err != nil {
						return err
					}
					return state.RemoveCustomer(c.Context, id)
				}),
			},
		},
	}
}

func billsCommand() *cli.Command {
	return &cli.Command{
		Name:  "bills",
		Usage: "issue and settle bills",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list bills, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "customer", Usage: "only bills of this customer id"},
				},
				Action: withState(func(c *cli.Context, state *app.State) error {
					bills := state.Bills()
					if id := c.String("customer"); id != "" {
						bills = state.CustomerBills(id)
					}
					return printBills(c.App.Writer, state, bills)
				}),
			},
			{
				Name:  "unpaid",
				Usage: "list unpaid bills",
				Action: withState(func(c *cli.Context, state *app.State) error {
					return printBills(c.App.Writer, state, state.UnpaidBills())
				}),
			},
			{
				Name:      "add",
				Usage:     "issue a bill from a new meter reading at the current rate",
				ArgsUsage: "<customer-id> <reading>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Usage: "issue date as YYYY-MM-DD (default: now); the same day as the latest bill counts as that bill's time"},
				},
				Action: withState(func(c *cli.Context, state *app.State) error {
					id, err := requireArg(c, 0, "customer-id")
					if err != nil {
						return err
					}
					reading, err := readingArg(c, 1)
					if err != nil {
						return err
					}
					var date time.Time
					if s := c.String("date"); s != "" {
						if date, err = time.Parse(dateLayout, s); err != nil {
							return models.NewValidationError("date", "expected YYYY-MM-DD")
						}
						if _, lastDate, ok := state.PreviousReading(id); ok {
							date = issueDate(date, lastDate)
						}
					}

					bill, err := state.AddBill(c.Context, id, reading, date)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "%s\t%d units\t%s\n", bill.ID, bill.Consumption, bill.Amount.StringFixed(2))
					return nil
				}),
			},
			{
				Name:      "pay",
				Usage:     "mark a bill as paid",
				ArgsUsage: "<bill-id>",
				Action: withState(func(c *cli.Context, state *app.State) error {
					id, err := requireArg(c, 0, "bill-id")
					if err != nil {
						return err
					}
					_, err = state.MarkBillPaid(c.Context, id)
					return err
				}),
			},
			{
				Name:      "update",
				Usage:     "correct the reading of a customer's latest bill",
				ArgsUsage: "<bill-id> <reading>",
				Action: withState(func(c *cli.Context, state *app.State) error {
					id, err := requireArg(c, 0, "bill-id")
					if err != nil {
						return err
					}
					reading, err := readingArg(c, 1)
					if err != nil {
						return err
					}
					_, err = state.UpdateBillReading(c.Context, id, reading)
					return err
				}),
			},
			{
				Name:      "remove",
				Usage:     "delete a bill",
				ArgsUsage: "<bill-id>",
				Action: withState(func(c *cli.Context, state *app.State) error {
					id, err := requireArg(c, 0, "bill-id")
					if err != nil {
						return err
					}
					return state.RemoveBill(c.Context, id)
				}),
			},
		},
	}
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "show what a customer was billed and still owes",
		ArgsUsage: "<customer-id>",
		Action: withState(func(c *cli.Context, state *app.State) error {
			id, err := requireArg(c, 0, "customer-id")
			if err != nil {
				return err
			}
			balance, err := state.CustomerBalance(id)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Bills\t%d\n", balance.BillCount)
			fmt.Fprintf(tw, "Unpaid bills\t%d\n", balance.UnpaidCount)
			fmt.Fprintf(tw, "Consumption\t%d\n", balance.Consumption)
			fmt.Fprintf(tw, "Billed\t%s\n", balance.TotalBilled.StringFixed(2))
			fmt.Fprintf(tw, "Paid\t%s\n", balance.TotalPaid.StringFixed(2))
			fmt.Fprintf(tw, "Outstanding\t%s\n", balance.Outstanding.StringFixed(2))
			reading, lastDate, ok := state.PreviousReading(id)
			fmt.Fprintf(tw, "Next reading from\t%d\n", reading)
			if ok {
				fmt.Fprintf(tw, "Earliest next date\t%s\n", lastDate.Format(dateLayout))
			}
			return tw.Flush()
		}),
	}
}

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "show or change the unit rate and names",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print the current settings",
				Action: withState(func(c *cli.Context, state *app.State) error {
					s := state.Settings()
					tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintf(tw, "Rate\t%s\n", s.KwRate.String())
					fmt.Fprintf(tw, "Company\t%s\n", s.CompanyName)
					fmt.Fprintf(tw, "System\t%s\n", s.SystemName)
					fmt.Fprintf(tw, "Logo\t%t\n", s.Logo != "")
					return tw.Flush()
				}),
			},
			{
				Name:  "set",
				Usage: "change settings; unset flags keep their value",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "rate", Usage: "price per unit, e.g. 0.65"},
					&cli.StringFlag{Name: "company"},
					&cli.StringFlag{Name: "system"},
					&cli.PathFlag{Name: "logo", Usage: "image file to embed as the logo"},
					&cli.BoolFlag{Name: "clear-logo"},
				},
				Action: withState(func(c *cli.Context, state *app.State) error {
					s := state.Settings()
					if c.IsSet("rate") {
						rate, err := decimal.NewFromString(c.String("rate"))
						if err != nil {
							return models.NewValidationError("kwRate", "not a number")
						}
						s.KwRate = rate
					}
					if c.IsSet("company") {
						s.CompanyName = c.String("company")
					}
					if c.IsSet("system") {
						s.SystemName = c.String("system")
					}
					if c.Bool("clear-logo") {
						s.Logo = ""
					}
					if path := c.Path("logo"); path != "" {
						logo, err := logoDataURL(path)
						if err != nil {
							return err
						}
						s.Logo = logo
					}
					_, err := state.UpdateSettings(c.Context, s)
					return err
				}),
			},
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "write all data to a snapshot file (- for stdout)",
		ArgsUsage: "<file>",
		Action: withState(func(c *cli.Context, state *app.State) error {
			path, err := requireArg(c, 0, "file")
			if err != nil {
				return err
			}
			if path == "-" {
				return state.Export(c.App.Writer)
			}

			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			if err := state.Export(f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}),
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "replace all data with the contents of a snapshot file",
		ArgsUsage: "<file>",
		Action: withState(func(c *cli.Context, state *app.State) error {
			path, err := requireArg(c, 0, "file")
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer f.Close()
			return state.Import(c.Context, f)
		}),
	}
}

func listCustomers(c *cli.Context, state *app.State) error {
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMETER\tADDRESS\tLAST READING")
	for _, customer := range state.Customers() {
		reading, _, _ := state.PreviousReading(customer.ID)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			customer.ID, customer.Name, customer.MeterNumber, customer.Address, reading)
	}
	return tw.Flush()
}

func printBills(w io.Writer, state *app.State, bills []models.Bill) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCUSTOMER\tPREVIOUS\tCURRENT\tUNITS\tRATE\tAMOUNT\tPAID")
	for _, b := range bills {
		name := b.CustomerID
		if customer, ok := state.FindCustomer(b.CustomerID); ok {
			name = customer.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\t%t\n",
			b.ID, b.Date.Format(dateLayout), name,
			b.PreviousReading, b.CurrentReading, b.Consumption,
			b.Rate.String(), b.Amount.StringFixed(2), b.IsPaid)
	}
	return tw.Flush()
}

func requireArg(c *cli.Context, i int, name string) (string, error) {
	if c.NArg() <= i || c.Args().Get(i) == "" {
		return "", fmt.Errorf("missing argument <%s>", name)
	}
	return c.Args().Get(i), nil
}

func readingArg(c *cli.Context, i int) (int64, error) {
	s, err := requireArg(c, i, "reading")
	if err != nil {
		return 0, err
	}
	reading, err := strconv.ParseInt(s, 10, 64)
	if err != nil || reading < 0 {
		return 0, models.NewValidationError("currentReading", "must be a non-negative whole number")
	}
	return reading, nil
}

// logoDataURL reads an image file into a base64 data URL.
func logoDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read logo: %w", err)
	}
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// issueDate turns a calendar day from the command line into a bill date. A
// day equal to the latest bill's day resolves to that bill's time, so it is
// not taken as back-dated.
func issueDate(day, lastDate time.Time) time.Time {
	last := lastDate.UTC()
	if day.Year() == last.Year() && day.YearDay() == last.YearDay() && day.Before(last) {
		return last
	}
	return day
}
