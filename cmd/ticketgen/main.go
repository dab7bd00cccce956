// ticketgen signs ticket payloads into scannable secrets for gate
// rehearsal: generate a keypair, hand the public half to the sync source,
// and print (or render as QR) as many signed secrets as needed.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/skip2/go-qrcode"

	"gatescan/internal/checkin"
)

func main() {
	var (
		genKeys    = flag.Bool("genkeys", false, "generate a new ed25519 keypair and exit")
		keyFile    = flag.String("key", "ticketgen.key", "private key file (base64)")
		item       = flag.Int64("item", 0, "item id to sign")
		variation  = flag.Int64("variation", 0, "variation id")
		subEvent   = flag.Int64("subevent", 0, "subevent id")
		validFrom  = flag.String("valid-from", "", "explicit valid-from (RFC3339)")
		validUntil = flag.String("valid-until", "", "explicit valid-until (RFC3339)")
		count      = flag.Int("count", 1, "number of secrets to generate")
		qrOut      = flag.String("qr", "", "write the first secret as a QR PNG to this file")
	)
	flag.Parse()

	if *genKeys {
		generateKeys(*keyFile)
		return
	}

	if *item == 0 {
		log.Fatal("ticketgen: -item is required")
	}

	key := loadKey(*keyFile)
	payload := checkin.TicketPayload{
		Item:      *item,
		Variation: *variation,
		SubEvent:  *subEvent,
	}
	if *validFrom != "" {
		t, err := time.Parse(time.RFC3339, *validFrom)
		if err != nil {
			log.Fatalf("ticketgen: bad -valid-from: %v", err)
		}
		payload.ValidFrom = &t
	}
	if *validUntil != "" {
		t, err := time.Parse(time.RFC3339, *validUntil)
		if err != nil {
			log.Fatalf("ticketgen: bad -valid-until: %v", err)
		}
		payload.ValidUntil = &t
	}

	for i := 0; i < *count; i++ {
		seed := make([]byte, 9)
		if _, err := rand.Read(seed); err != nil {
			log.Fatalf("ticketgen: %v", err)
		}
		payload.Seed = base64.RawURLEncoding.EncodeToString(seed)

		secret, err := checkin.SignTicket(payload, key)
		if err != nil {
			log.Fatalf("ticketgen: sign: %v", err)
		}
		fmt.Println(secret)

		if i == 0 && *qrOut != "" {
			if err := qrcode.WriteFile(secret, qrcode.Medium, 256, *qrOut); err != nil {
				log.Fatalf("ticketgen: qr: %v", err)
			}
			fmt.Fprintf(os.Stderr, "QR written to %s\n", *qrOut)
		}
	}
}

func generateKeys(keyFile string) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		log.Fatalf("ticketgen: keygen: %v", err)
	}
	if err := os.WriteFile(keyFile, []byte(base64.StdEncoding.EncodeToString(priv)), 0600); err != nil {
		log.Fatalf("ticketgen: write key: %v", err)
	}
	fmt.Printf("private key: %s\n", keyFile)
	fmt.Printf("public key (hand to the sync source): %s\n", base64.StdEncoding.EncodeToString(pub))
}

func loadKey(keyFile string) ed25519.PrivateKey {
	raw, err := os.ReadFile(keyFile)
	if err != nil {
		log.Fatalf("ticketgen: read key (run -genkeys first?): %v", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil || len(decoded) != ed25519.PrivateKeySize {
		log.Fatalf("ticketgen: %s does not hold a valid key", keyFile)
	}
	return ed25519.PrivateKey(decoded)
}
