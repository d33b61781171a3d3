package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thermaquote/thermaquote/internal/auth"
)

const passwordEnv = "THERMAQUOTE_PASSWORD"

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts",
	}
	cmd.AddCommand(newUserAddCommand())
	return cmd
}

func newUserAddCommand() *cobra.Command {
	var in auth.NewUser
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a staff login",
		Long:  "Create a staff login. The password is read from --password or " + passwordEnv + ".",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Password == "" {
				in.Password = os.Getenv(passwordEnv)
			}
			if in.Password == "" {
				return errors.New("password required: pass --password or set " + passwordEnv)
			}
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.connectDB(cmd.Context()); err != nil {
				return err
			}
			user, err := auth.NewService(auth.NewRepository(e.pool)).CreateUser(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d <%s>\n", user.ID, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	cmd.Flags().StringVar(&in.FullName, "name", "", "display name")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
