// Command e3box is a thin CLI over the client package: register an
// identity, write/read/delete records, and manage sharing grants
// from a saved profile, the way vaultctl drives a vault file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tozny/e3db-go/client"
	"github.com/tozny/e3db-go/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	profilePath := defaultProfilePath()

	switch os.Args[1] {
	case "register":
		cmd := flag.NewFlagSet("register", flag.ExitOnError)
		apiURL := cmd.String("api-url", "", "fake/real server base URL")
		token := cmd.String("token", "", "registration token")
		name := cmd.String("name", "", "client display name")
		v2 := cmd.Bool("v2", false, "register a v2 (signing-capable) client")
		path := cmd.String("profile", profilePath, "profile path")
		_ = cmd.Parse(os.Args[2:])
		dieIf(cmdRegister(*apiURL, *token, *name, *v2, *path))

	case "write":
		cmd := flag.NewFlagSet("write", flag.ExitOnError)
		recType := cmd.String("type", "", "record type")
		data := cmd.String("data", "{}", "JSON object of field:value pairs")
		plain := cmd.String("plain", "", "JSON object of plain meta fields")
		path := cmd.String("profile", profilePath, "profile path")
		_ = cmd.Parse(os.Args[2:])
		dieIf(cmdWrite(*path, *recType, *data, *plain))

	case "read":
		cmd := flag.NewFlagSet("read", flag.ExitOnError)
		id := cmd.String("id", "", "record id")
		fields := cmd.String("fields", "", "comma-separated field subset")
		path := cmd.String("profile", profilePath, "profile path")
		_ = cmd.Parse(os.Args[2:])
		dieIf(cmdRead(*path, *id, *fields))

	case "delete":
		cmd := flag.NewFlagSet("delete", flag.ExitOnError)
		id := cmd.String("id", "", "record id")
		version := cmd.String("version", "", "version for a safe/optimistic delete")
		path := cmd.String("profile", profilePath, "profile path")
		_ = cmd.Parse(os.Args[2:])
		dieIf(cmdDelete(*path, *id, *version))

	case "share":
		cmd := flag.NewFlagSet("share", flag.ExitOnError)
		recType := cmd.String("type", "", "record type")
		reader := cmd.String("reader", "", "reader client id")
		path := cmd.String("profile", profilePath, "profile path")
		_ = cmd.Parse(os.Args[2:])
		dieIf(cmdShare(*path, *recType, *reader))

	case "revoke":
		cmd := flag.NewFlagSet("revoke", flag.ExitOnError)
		recType := cmd.String("type", "", "record type")
		reader := cmd.String("reader", "", "reader client id")
		path := cmd.String("profile", profilePath, "profile path")
		_ = cmd.Parse(os.Args[2:])
		dieIf(cmdRevoke(*path, *recType, *reader))

	case "outgoing":
		cmd := flag.NewFlagSet("outgoing", flag.ExitOnError)
		path := cmd.String("profile", profilePath, "profile path")
		_ = cmd.Parse(os.Args[2:])
		dieIf(cmdOutgoing(*path))

	case "incoming":
		cmd := flag.NewFlagSet("incoming", flag.ExitOnError)
		path := cmd.String("profile", profilePath, "profile path")
		_ = cmd.Parse(os.Args[2:])
		dieIf(cmdIncoming(*path))

	case "whoami":
		cmd := flag.NewFlagSet("whoami", flag.ExitOnError)
		path := cmd.String("profile", profilePath, "profile path")
		_ = cmd.Parse(os.Args[2:])
		dieIf(cmdWhoami(*path))

	default:
		usage()
	}
}

func usage() {
	fmt.Print(`e3box commands:

  register --api-url URL --token TOK --name NAME [--v2] [--profile PATH]
  write    --type TYPE --data JSON [--plain JSON] [--profile PATH]
  read     --id RECORD_ID [--fields a,b,c] [--profile PATH]
  delete   --id RECORD_ID [--version V] [--profile PATH]
  share    --type TYPE --reader CLIENT_ID [--profile PATH]
  revoke   --type TYPE --reader CLIENT_ID [--profile PATH]
  outgoing [--profile PATH]
  incoming [--profile PATH]
  whoami   [--profile PATH]

Profile defaults to ~/.e3box/profile.json; register writes one.
`)
}

func cmdRegister(apiURL, token, name string, v2 bool, profilePath string) error {
	if apiURL == "" || token == "" || name == "" {
		return errors.New("--api-url, --token and --name are required")
	}
	pub, priv, err := client.GenerateKeypair()
	if err != nil {
		return err
	}
	var signPub, signPriv string
	if v2 {
		signPub, signPriv, err = client.GenerateSigningKeypair()
		if err != nil {
			return err
		}
	}

	details, err := client.Register(context.Background(), apiURL, token, name, pub, priv, signPub, signPriv, "")
	if err != nil {
		return err
	}

	version := config.V1
	if v2 {
		version = config.V2
	}
	cfg := config.Config{
		ClientID: details.ClientID, APIKeyID: details.APIKeyID, APISecret: details.APISecret,
		PublicKey: pub, PrivateKey: priv, PublicSignKey: signPub, PrivateSignKey: signPriv,
		APIURL: apiURL, Version: version,
	}
	if err := saveProfile(profilePath, cfg); err != nil {
		return err
	}
	fmt.Println("Registered client:", details.ClientID)
	fmt.Println("Profile saved to:", profilePath)
	return nil
}

func cmdWrite(profilePath, recType, dataJSON, plainJSON string) error {
	if recType == "" {
		return errors.New("--type is required")
	}
	c, err := openClient(profilePath)
	if err != nil {
		return err
	}
	defer c.Close()

	data := map[string]string{}
	if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
		return fmt.Errorf("--data: %w", err)
	}
	var plain map[string]string
	if plainJSON != "" {
		if err := json.Unmarshal([]byte(plainJSON), &plain); err != nil {
			return fmt.Errorf("--plain: %w", err)
		}
	}

	rec, err := c.Write(context.Background(), recType, data, plain)
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func cmdRead(profilePath, id, fieldsCSV string) error {
	if id == "" {
		return errors.New("--id is required")
	}
	c, err := openClient(profilePath)
	if err != nil {
		return err
	}
	defer c.Close()

	var fields []string
	if fieldsCSV != "" {
		fields = strings.Split(fieldsCSV, ",")
	}
	rec, err := c.Read(context.Background(), id, fields...)
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func cmdDelete(profilePath, id, version string) error {
	if id == "" {
		return errors.New("--id is required")
	}
	c, err := openClient(profilePath)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Delete(context.Background(), id, version); err != nil {
		return err
	}
	fmt.Println("Deleted record:", id)
	return nil
}

func cmdShare(profilePath, recType, reader string) error {
	if recType == "" || reader == "" {
		return errors.New("--type and --reader are required")
	}
	c, err := openClient(profilePath)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Share(context.Background(), recType, reader); err != nil {
		return err
	}
	fmt.Printf("Shared %s with %s\n", recType, reader)
	return nil
}

func cmdRevoke(profilePath, recType, reader string) error {
	if recType == "" || reader == "" {
		return errors.New("--type and --reader are required")
	}
	c, err := openClient(profilePath)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Revoke(context.Background(), recType, reader); err != nil {
		return err
	}
	fmt.Printf("Revoked %s from %s\n", recType, reader)
	return nil
}

func cmdOutgoing(profilePath string) error {
	c, err := openClient(profilePath)
	if err != nil {
		return err
	}
	defer c.Close()
	out, err := c.OutgoingSharing(context.Background())
	if err != nil {
		return err
	}
	return printJSON(out)
}

func cmdIncoming(profilePath string) error {
	c, err := openClient(profilePath)
	if err != nil {
		return err
	}
	defer c.Close()
	in, err := c.IncomingSharing(context.Background())
	if err != nil {
		return err
	}
	return printJSON(in)
}

func cmdWhoami(profilePath string) error {
	cfg, err := loadProfile(profilePath)
	if err != nil {
		return err
	}
	fmt.Println("client_id:", cfg.ClientID)
	fmt.Println("api_url:  ", cfg.APIURL)
	fmt.Println("version:  ", cfg.Version)
	return nil
}

func openClient(profilePath string) (*client.Client, error) {
	cfg, err := loadProfile(profilePath)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", profilePath, err)
	}
	return client.New(cfg)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func dieIf(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
